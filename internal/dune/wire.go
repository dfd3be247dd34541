package dune

// createQueryRequest is the JSON body sent to POST /query.
type createQueryRequest struct {
	Name      string `json:"name"`
	QuerySQL  string `json:"query_sql"`
	IsPrivate bool   `json:"is_private"`
}

// queryIDResponse is returned by POST /query and PATCH /query/{id}.
type queryIDResponse struct {
	QueryID int64 `json:"query_id"`
}

// updateQueryRequest is the JSON body sent to PATCH /query/{id}.
type updateQueryRequest struct {
	QuerySQL string `json:"query_sql"`
}

// queryResponse is returned by GET /query/{id}.
type queryResponse struct {
	QueryID     int64  `json:"query_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	QuerySQL    string `json:"query_sql"`
	IsPrivate   bool   `json:"is_private"`
	IsArchived  bool   `json:"is_archived"`
	Owner       string `json:"owner"`
}

// executeResponse is returned by POST /query/{id}/execute.
type executeResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
}

// executionError is the optional error detail on status and results responses.
type executionError struct {
	Message string `json:"message"`
}

// statusResponse is returned by GET /execution/{id}/status.
type statusResponse struct {
	ExecutionID string          `json:"execution_id"`
	QueryID     int64           `json:"query_id"`
	State       string          `json:"state"`
	Error       *executionError `json:"error,omitempty"`
}

// resultsResponse is returned by GET /execution/{id}/results.
type resultsResponse struct {
	ExecutionID string          `json:"execution_id"`
	QueryID     int64           `json:"query_id"`
	State       string          `json:"state"`
	Error       *executionError `json:"error,omitempty"`
	Result      *struct {
		Rows     []map[string]interface{} `json:"rows"`
		Metadata struct {
			RowCount int `json:"row_count"`
		} `json:"metadata"`
	} `json:"result,omitempty"`
}
