// Package drive owns the encode and decode flows end to end.
//
// Ownership boundary:
// - payload preparation, capacity planning, blob slicing
// - frame construction and ordered hand-off to collaborators
// - decode-session driving and the stored-image naming convention
//
// Drive does not draw codes, scan images, or lay out pages; those are
// collaborator boundaries behind the Renderer, Scanner and Pager
// interfaces.
package drive
