package dispatcher

import (
	"encoding/json"
	"net/http"
)

// Envelope es la forma de toda respuesta; Code repite el status HTTP.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type Response struct {
	Status int
	Body   Envelope
	Trace  Trace
}

func success(status int, data any) Response {
	return Response{Status: status, Body: Envelope{Code: status, Message: http.StatusText(status), Data: data}}
}

func fail(status int, msg string) Response {
	return Response{Status: status, Body: Envelope{Code: status, Message: msg}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
