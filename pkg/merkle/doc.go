// Package merkle builds SHA-256 Merkle trees over audit log lines and
// produces and verifies inclusion proofs.
//
// Leaves are the SHA-256 of the raw line bytes. Each parent is
// SHA-256(left || right); a level with an odd number of nodes pairs its last
// node with itself. A single leaf is its own root and an empty tree has no
// root.
package merkle
