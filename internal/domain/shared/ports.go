package shared

import "context"

// Notifier shows transient feedback to the operator.
type Notifier interface {
	Success(message string)
	Warning(message string)
	Error(message string)
}

// Confirmer asks the operator a yes/no question and blocks until answered.
// Returning false means the operator declined or the context ended.
type Confirmer interface {
	Confirm(ctx context.Context, message string) bool
}

// Navigator moves the operator between console locations.
// Locations are path plus optional query, e.g. "/pms/brand?pageNum=2".
type Navigator interface {
	Current() string
	Navigate(location string)
	Back()
}
