package ports

import "errors"

// ErrNotFound is returned by repositories when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoRoute is returned by routing providers when no route exists within the
// search ceiling.
var ErrNoRoute = errors.New("no route found")
