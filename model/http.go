package model

type OptimizeRequestBody struct {
	MML        string `json:"mml"`
	Generation int    `json:"generation"`
}

type OptimizeResponse struct {
	MML        string `json:"mml"`
	Generation int    `json:"generation"`
	Length     int    `json:"length"`
	TotalTicks int    `json:"total_ticks"`
}

type CreateSessionRequestBody struct {
	MML string `json:"mml"`
}

type SessionResponse struct {
	ID         string       `json:"id"`
	Revision   uint64       `json:"revision"`
	MML        string       `json:"mml"`
	Generation int          `json:"generation"`
	TotalTicks int          `json:"total_ticks"`
	Tempos     []TempoEvent `json:"tempos"`
}

type InsertNotesRequestBody struct {
	Notes []Triple `json:"notes"`
}

type TextSpanResponse struct {
	Tick  int `json:"tick"`
	Start int `json:"start"`
	End   int `json:"end"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
