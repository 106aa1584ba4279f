package resources

import "encoding/json"

// Problem is a struct representing an RFC 7807 problem document from the
// server.
//
// See https://tools.ietf.org/html/rfc8555#section-6.7
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
	Status   int    `json:"status,omitempty"`
}

// ProblemFromBody parses a problem document from an error response body.
// A Problem is only returned when the body is JSON carrying both the "type"
// and "detail" fields; anything else yields nil, indicating the server sent
// an unstructured error.
func ProblemFromBody(body []byte) *Problem {
	var prob Problem
	if err := json.Unmarshal(body, &prob); err != nil {
		return nil
	}
	if prob.Type == "" || prob.Detail == "" {
		return nil
	}
	return &prob
}
