package domain

// BindingStatus classifies a local definition file by its name.
type BindingStatus int

// Binding statuses.
const (
	// Unbound files have no remote id in their name yet.
	Unbound BindingStatus = iota
	// Bound files carry a remote id after the separator.
	Bound
	// Malformed files contain the separator but no parseable id after it.
	Malformed
)

func (s BindingStatus) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Definition is one local query file.
type Definition struct {
	Path        string // absolute or dir-relative path of the file on disk
	FileName    string // base name including extension
	BaseName    string // name without extension and without the id suffix
	DisplayName string // human-readable name sent to the remote service
	SQL         string
	Status      BindingStatus
	ID          QueryID // zero unless Status == Bound
}

// Query is the remote metadata returned by GetQuery.
type Query struct {
	ID          QueryID
	Name        string
	Description string
	SQL         string
	IsPrivate   bool
	IsArchived  bool
	Owner       string
}

// CreateQueryRequest holds the fields sent when creating a remote query.
type CreateQueryRequest struct {
	Name      string
	SQL       string
	IsPrivate bool
}
