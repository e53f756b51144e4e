package models

// Typed records exchanged between pipeline stages. The audio stage uses
// AudioScript and the final stage ProductionPlan.

type TrendReport struct {
	Query           string       `json:"query,omitempty"`
	ViralTopics     []TrendTopic `json:"viral_topics" jsonschema_description:"Top opportunities, strongest first"`
	ViralFormats    []string     `json:"viral_formats"`
	TrendingSounds  []string     `json:"trending_sounds,omitempty"`
	AestheticTrends []string     `json:"aesthetic_trends,omitempty"`
	Hooks           []string     `json:"hooks,omitempty"`
	ContentGaps     []string     `json:"content_gaps,omitempty"`
}

type TrendTopic struct {
	Topic         string `json:"topic"`
	Engagement    string `json:"engagement,omitempty"`
	Sentiment     string `json:"sentiment,omitempty"`
	MemePotential string `json:"meme_potential,omitempty"`
	Description   string `json:"description,omitempty"`
}

type Concept struct {
	Title              string     `json:"title"`
	Hook               string     `json:"hook" jsonschema_description:"What happens in the first three seconds"`
	ViralMechanism     string     `json:"viral_mechanism"`
	EmotionalCurve     []string   `json:"emotional_curve,omitempty"`
	NarrativeArc       []ArcBeat  `json:"narrative_arc"`
	ProductIntegration string     `json:"product_integration,omitempty"`
	PlatformNotes      []string   `json:"platform_notes,omitempty"`
	SourceTrend        TrendTopic `json:"source_trend,omitempty"`
}

type ArcBeat struct {
	Time string `json:"time"`
	Beat string `json:"beat"`
}

type SceneBreakdown struct {
	VideoID       string      `json:"video_id,omitempty"`
	TotalDuration float64     `json:"total_duration,omitempty"`
	Style         string      `json:"style,omitempty"`
	AspectRatio   string      `json:"aspect_ratio,omitempty"`
	Scenes        []Scene     `json:"scenes"`
	Storyboard    *Storyboard `json:"storyboard,omitempty"`
}

type Storyboard struct {
	Title       string            `json:"title"`
	TotalBoards int               `json:"total_boards"`
	Boards      []StoryboardPanel `json:"boards"`
}

type StoryboardPanel struct {
	BoardNumber       int      `json:"board_number"`
	SceneID           int      `json:"scene_id"`
	Duration          float64  `json:"duration"`
	ShotType          string   `json:"shot_type"`
	VisualDescription string   `json:"visual_description"`
	Composition       string   `json:"composition,omitempty"`
	TransitionIn      string   `json:"transition_in"`
	TransitionOut     string   `json:"transition_out"`
	ColorPalette      []string `json:"color_palette,omitempty"`
	AudioNotes        string   `json:"audio_notes,omitempty"`
}

type OptimizationPlan struct {
	Platform           string   `json:"platform" jsonschema:"enum=tiktok,enum=instagram_reels,enum=youtube_shorts,enum=twitter"`
	SecondaryPlatforms []string `json:"secondary_platforms,omitempty"`
	Captions           bool     `json:"captions"`
	HookWindowSeconds  int      `json:"hook_window_seconds,omitempty"`
	ShareTriggers      []string `json:"share_triggers,omitempty" jsonschema_description:"MM:SS marks meant to prompt a share"`
	Hashtags           []string `json:"hashtags,omitempty"`
	PostingWindows     []string `json:"posting_windows,omitempty"`
	Title              string   `json:"title,omitempty"`
	Description        string   `json:"description,omitempty"`
	ABTests            []string `json:"ab_tests,omitempty"`
}
