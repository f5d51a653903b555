package controllers

import "github.com/datallboy/levelkeep/internal/domain"

// LevelResponse is one level as the API reports it
type LevelResponse struct {
	domain.Record
	Playable bool `json:"playable"`
}

type LevelDetailResponse struct {
	LevelResponse
	Descriptor domain.Descriptor `json:"descriptor"`
}

type LevelListResponse struct {
	Levels []LevelResponse `json:"levels"`
	Total  int             `json:"total"`
}

type ErrorResponse struct {
	Error  string         `json:"error"`
	Record *domain.Record `json:"record,omitempty"`
}

func newLevelResponse(rec domain.Record) LevelResponse {
	return LevelResponse{Record: rec, Playable: rec.State.Playable()}
}
