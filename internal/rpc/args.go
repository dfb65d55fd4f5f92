package rpc

import (
	"encoding/json"
	"strings"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/apperror"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

// idsArgs is the subset of an arguments object this file normalizes.
type idsArgs struct {
	IDs json.RawMessage `json:"ids"`
}

// parseIDSelector normalizes the "ids" argument shape accepted across the
// RPC surface: absent (every torrent), "recently-active", a single int, or
// an array of ints.
func parseIDSelector(raw json.RawMessage) (model.IDSelector, *apperror.Error) {
	if len(raw) == 0 {
		return model.IDSelector{All: true}, nil
	}
	var env idsArgs
	if err := json.Unmarshal(raw, &env); err != nil {
		return model.IDSelector{}, apperror.New(apperror.KindInvalidJSON, err.Error())
	}
	if len(env.IDs) == 0 {
		return model.IDSelector{All: true}, nil
	}

	trimmed := strings.TrimSpace(string(env.IDs))
	if trimmed == `"recently-active"` {
		return model.IDSelector{RecentlyActive: true}, nil
	}

	var single int
	if err := json.Unmarshal(env.IDs, &single); err == nil {
		return model.IDSelector{IDs: []int{single}}, nil
	}

	var list []int
	if err := json.Unmarshal(env.IDs, &list); err == nil {
		return model.IDSelector{IDs: list}, nil
	}

	return model.IDSelector{}, apperror.New(apperror.KindInvalidArgument, "ids must be an integer, array of integers, or \"recently-active\"")
}

// fieldsArgs is the "fields" argument accepted by torrent-get.
type fieldsArgs struct {
	Fields []string `json:"fields"`
}

func parseFields(raw json.RawMessage) ([]string, *apperror.Error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var env fieldsArgs
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperror.New(apperror.KindInvalidJSON, err.Error())
	}
	return env.Fields, nil
}

// truthy accepts Transmission's historical numeric 0/1 booleans alongside
// real JSON booleans for arguments kept as raw JSON, such as torrent-add's
// paused and torrent-remove's delete-local-data.
func truthy(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "true" || s == "1"
}
