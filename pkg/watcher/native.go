package watcher

import "github.com/fsnotify/fsnotify"

// native is the subset of the platform watch service the loop relies on.
type native interface {
	Add(path string) error
	Remove(path string) error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
	Close() error
}

type fsnotifyNative struct {
	fsw *fsnotify.Watcher
}

func openFSNotify() (native, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &fsnotifyNative{fsw: fsw}, nil
}

func (n *fsnotifyNative) Add(path string) error         { return n.fsw.Add(path) }
func (n *fsnotifyNative) Remove(path string) error      { return n.fsw.Remove(path) }
func (n *fsnotifyNative) Events() <-chan fsnotify.Event { return n.fsw.Events }
func (n *fsnotifyNative) Errors() <-chan error          { return n.fsw.Errors }
func (n *fsnotifyNative) Close() error                  { return n.fsw.Close() }

// kindOf maps a native op onto a public kind. Attribute-only changes and
// empty ops map to KindUnknown and are dropped.
func kindOf(op fsnotify.Op) Kind {
	switch {
	case op.Has(fsnotify.Create):
		return KindCreate
	case op.Has(fsnotify.Write):
		return KindModify
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return KindDelete
	default:
		return KindUnknown
	}
}
