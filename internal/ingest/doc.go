// Package ingest turns raw partner record dumps into canonical archive
// entities. Records are clustered by normalization key, each cluster becomes
// one entity, and every external identifier observed in a cluster is claimed
// so later imports cannot double-create.
package ingest
