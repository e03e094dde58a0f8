// Package icons lists the prompt icons available to the settings editor.
package icons

import (
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

const suffix = "white.png"

// List walks root for "*white.png" files and groups them by their parent
// directory name. Paths are slash-separated and prefixed with prefix, so a
// result can be stored as a PromptEntry icon directly.
func List(root, prefix string) (map[string][]string, error) {
	return ListFS(os.DirFS(root), prefix)
}

func ListFS(fsys fs.FS, prefix string) (map[string][]string, error) {
	out := make(map[string][]string)
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		dir := path.Dir(p)
		if dir == "." {
			return nil
		}
		category := path.Base(dir)
		out[category] = append(out[category], path.Join(prefix, p))
		return nil
	})
	if err != nil {
		return nil, err
	}
	for k := range out {
		sort.Strings(out[k])
	}
	return out, nil
}
