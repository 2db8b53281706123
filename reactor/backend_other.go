//go:build !linux && !darwin

package reactor

var backends = map[string]func() (Backend, error){}
