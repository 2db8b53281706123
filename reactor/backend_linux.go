//go:build linux

package reactor

var backends = map[string]func() (Backend, error){
	BackendPoll:   newPollBackend,
	BackendSelect: newSelectBackend,
	BackendEpoll:  newEpollBackend,
}
