package httpserver

import (
	"encoding/json"
	"math"

	tokendomain "tokenservice/backend/internal/domain/token"
)

const maxSafeInteger = 1 << 53

type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// parseCreateRequest checks a decoded POST body field by field so every
// problem is reported at once.
func parseCreateRequest(body map[string]json.RawMessage) (tokendomain.CreateRequest, fieldErrors) {
	var req tokendomain.CreateRequest
	errs := fieldErrors{}

	if raw := body["userId"]; isAbsent(raw) {
		errs.add("userId", "Required")
	} else if err := json.Unmarshal(raw, &req.UserID); err != nil {
		errs.add("userId", "Expected string")
	} else if req.UserID == "" {
		errs.add("userId", "userId must be a non-empty string")
	}

	if raw := body["scopes"]; isAbsent(raw) {
		errs.add("scopes", "Required")
	} else {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			errs.add("scopes", "Expected array")
		} else if len(items) == 0 {
			errs.add("scopes", "scopes must be a non-empty array")
		} else {
			req.Scopes = make([]string, 0, len(items))
			for _, item := range items {
				var scope string
				if err := json.Unmarshal(item, &scope); err != nil {
					errs.add("scopes", "Expected string")
					break
				}
				req.Scopes = append(req.Scopes, scope)
			}
		}
	}

	if raw := body["expiresInMinutes"]; isAbsent(raw) {
		errs.add("expiresInMinutes", "Required")
	} else {
		var minutes float64
		switch err := json.Unmarshal(raw, &minutes); {
		case err != nil:
			errs.add("expiresInMinutes", "Expected number")
		case minutes != math.Trunc(minutes):
			errs.add("expiresInMinutes", "Expected integer, received float")
		case minutes <= 0:
			errs.add("expiresInMinutes", "expiresInMinutes must be a positive integer")
		case minutes >= maxSafeInteger:
			errs.add("expiresInMinutes", "expiresInMinutes is too large")
		default:
			req.ExpiresInMinutes = int(minutes)
		}
	}

	if len(errs) > 0 {
		return tokendomain.CreateRequest{}, errs
	}
	return req, nil
}

// parseListQuery validates the userId query parameter.
func parseListQuery(values map[string][]string) (string, fieldErrors) {
	ids, ok := values["userId"]
	if !ok || len(ids) == 0 {
		return "", fieldErrors{"userId": {"Required"}}
	}
	if ids[0] == "" {
		return "", fieldErrors{"userId": {"userId is required"}}
	}
	return ids[0], nil
}
