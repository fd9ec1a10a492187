// Package attribute implements the hierarchical fact store shared by all
// plugins during one collection run.
//
// # Structure
//
// The store is a tree. Each node is a scalar leaf, an ordered sequence of
// scalars, or a mapping to child nodes. Nodes are addressed by a Path of
// key segments:
//
//	store := attribute.NewStore()
//	_ = store.Set(attribute.P("ec2", "instance_type"), "c1.medium")
//	v, ok := store.GetString(attribute.P("ec2", "instance_type"))
//
// # Keys
//
// Keys preserve case. Any string-like value (string, named string types,
// fmt.Stringer) that renders the same text addresses the same key. Keys
// taken from external metadata go through MetadataKey, which maps "-" to
// "_" so that "security-groups" is stored as "security_groups".
//
// # Assignment
//
// Assigning a mapping onto an existing mapping deep-merges. Assigning any
// other value overwrites. The store exposes no deletion; a new collection
// run starts from a fresh store.
package attribute
