// Package photos stores entity portraits as temporal versions. Each upload
// is tagged with a year, older versions are never deleted, and the newest
// year wins the active slot.
package photos
