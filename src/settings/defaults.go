package settings

const (
	DefaultHotkey  = "<alt>+r"
	DefaultBaseURL = "https://api.openai.com/v1/"
	DefaultModel   = "gpt-4o-mini"

	DefaultSystemMessage       = "You are a helpful tool called Open Rewrite, your main purpose is to rewrite the text as instructions given by the user, do not add any extra information or add any new information, just rewrite"
	DefaultCustomSystemMessage = "You are a helpful tool called Open Rewrite. Follow the user's custom instructions exactly as provided."

	iconRoot = "static/material_icons_round/"
)

// Defaults returns a fresh copy of the built-in settings.
func Defaults() Settings {
	return Settings{
		Hotkey:              DefaultHotkey,
		BaseURL:             DefaultBaseURL,
		Model:               DefaultModel,
		SystemMessage:       DefaultSystemMessage,
		CustomSystemMessage: DefaultCustomSystemMessage,
		Catalog: Catalog{
			{Name: CategoryTones, Options: []Option{
				{"Friendly", PromptEntry{
					"Rewrite the text in a friendly tone. Ensure it sounds approachable and warm. Do not assume anything or add any new information. don't use funky words.",
					iconRoot + "social/round_emoji_emotions_black_48dp_white.png"}},
				{"Professional", PromptEntry{
					"Rewrite the text in a professional tone. Make it sound formal and polished. Use simple English words. Do not assume anything or add any new information.",
					iconRoot + "places/round_business_center_black_48dp_white.png"}},
				{"Polite", PromptEntry{
					"Rewrite the text in a polite tone. Ensure it is courteous and respectful but also use casual language.Use simple English words. Do not assume anything or add any new information.",
					iconRoot + "maps/round_local_florist_black_48dp_white.png"}},
				{"Casual", PromptEntry{
					"Rewrite the text in a casual tone. Make it sound relaxed and informal. Do not use funky words,use basic english words. Do not assume anything or add new information.",
					iconRoot + "maps/round_local_cafe_black_48dp_white.png"}},
				{"Concise", PromptEntry{
					"Rewrite the text in a concise way. Use only the main points. use simple English words. Do not assume anything or add any new information.",
					iconRoot + "editor/round_vertical_align_center_black_48dp_white.png"}},
			}},
			{Name: CategoryFormats, Options: []Option{
				{"Summary", PromptEntry{
					"Summarize the text. Capture the main points succinctly without adding new information or assuming anything.",
					iconRoot + "content/round_sort_black_48dp_white.png"}},
				{"Keypoints", PromptEntry{
					"Rewrite the text highlighting the key points. Use bullet points to make it clear and concise. Do not add new information or assume anything.",
					iconRoot + "editor/round_format_list_bulleted_black_48dp_white.png"}},
				{"List", PromptEntry{
					"Rewrite the text as a list. Break down the information into a clear, itemized list. Do not assume anything or add new information.",
					iconRoot + "editor/round_format_list_numbered_black_48dp_white.png"}},
				{"Markdown", PromptEntry{
					"Rewrite the text using Markdown formatting. Organize the information with appropriate headers, lists, and other Markdown elements. Do not assume anything or add new information.",
					iconRoot + "editor/round_table_chart_black_48dp_white.png"}},
			}},
		},
	}
}

// fillDefaults completes a leniently loaded record: blank scalars and absent
// required categories come from Defaults.
func fillDefaults(s Settings) Settings {
	d := Defaults()
	if s.Hotkey == "" {
		s.Hotkey = d.Hotkey
	}
	if s.BaseURL == "" {
		s.BaseURL = d.BaseURL
	}
	if s.Model == "" {
		s.Model = d.Model
	}
	if s.SystemMessage == "" {
		s.SystemMessage = d.SystemMessage
	}
	if s.CustomSystemMessage == "" {
		s.CustomSystemMessage = d.CustomSystemMessage
	}
	for _, name := range RequiredCategories {
		if _, ok := s.Catalog.Category(name); !ok {
			cat, _ := d.Catalog.Category(name)
			s.Catalog = append(s.Catalog, cat)
		}
	}
	return s
}
