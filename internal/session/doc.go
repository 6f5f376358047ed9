// Package session manages the temporary directory that holds the page
// images of one open document, and watches the free space left on its
// filesystem.
package session
