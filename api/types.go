package api

import "github.com/hyperdot/hyperdot-node/storage"

type ResponseCode int

const (
	CodeSuccess ResponseCode = 0
	CodeError   ResponseCode = 1
)

// ResponseMeta heads every response. Reason explains a failure.
type ResponseMeta struct {
	Code    ResponseCode `json:"code"`
	Message string       `json:"message,omitempty"`
	Reason  string       `json:"reason,omitempty"`
}

func success(message string) ResponseMeta {
	return ResponseMeta{Code: CodeSuccess, Message: message}
}

type ErrorResponse struct {
	Meta ResponseMeta `json:"meta"`
}

type RunQueryRequest struct {
	Engine string `json:"engine"`
	Chain  string `json:"chain"`
	Query  string `json:"query"`
}

type RunQueryResponse struct {
	Meta ResponseMeta  `json:"meta"`
	Rows *storage.Rows `json:"rows"`
}

type SchemeResponse struct {
	Meta   ResponseMeta    `json:"meta"`
	Engine string          `json:"engine"`
	Chain  string          `json:"chain"`
	Tables []storage.Table `json:"tables"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type DataEngine struct {
	Name   string   `json:"name"`
	Chains []string `json:"chains"`
}

type ListDataEnginesResponse struct {
	Meta    ResponseMeta `json:"meta"`
	Engines []DataEngine `json:"engines"`
}
