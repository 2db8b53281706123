//go:build darwin

package reactor

var backends = map[string]func() (Backend, error){
	BackendPoll:   newPollBackend,
	BackendKqueue: newKqueueBackend,
}
