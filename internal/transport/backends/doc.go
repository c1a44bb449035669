// Package backends maps transport module names to their constructors.
package backends
