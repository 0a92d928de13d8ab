package gamedto

// Intent is one presentation action posted to the bridge. Only the fields
// relevant to Kind are read.
type Intent struct {
	Kind        string `json:"kind"`
	Square      string `json:"square,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Promotion   string `json:"promotion,omitempty"`
	Key         string `json:"key,omitempty"`
	Color       string `json:"color,omitempty"`
	Difficulty  string `json:"difficulty,omitempty"`
	TimeControl string `json:"time_control,omitempty"`
	Resume      string `json:"resume,omitempty"`
	Text        string `json:"text,omitempty"`
}

type IntentResponse struct {
	OK        bool   `json:"ok"`
	SessionID string `json:"session_id,omitempty"`
	Error     *Error `json:"error,omitempty"`
	State     *State `json:"state,omitempty"`
}
