// Package watcher polls the tracker and reports tags in a hazardous tier.
package watcher
