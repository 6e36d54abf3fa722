// Package reload keeps the route registry consistent with the handler
// files on disk. A recursive fsnotify watcher turns file-system churn
// into discovered/changed/removed events; each file has its own ordered
// event queue so an older compile can never clobber a newer one, while
// unrelated files compile concurrently. Pre-existing files are loaded
// as a burst before the loader signals ready. A file that fails to
// compile keeps its route alive in a broken state and never stops the
// watcher.
package reload
