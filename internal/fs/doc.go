// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file that can be written, synced and read at offsets
//   - [FileSystem]: the operations behind an atomic blob write
//
// # Implementations
//
//   - [OS]: the host file system
//   - [FaultyFS]: a wrapper that injects write, sync, rename and read errors
//
// Tests inject [FaultyFS] into the local blob store to check that a failed
// segment write surfaces as an error and never replaces a good segment:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("seg-", fs.Fault{FailAfterBytes: 1024})
//	store := blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))
//
// This package intentionally does NOT include context.Context parameters.
// Local file operations are not interruptible at the syscall level.
package fs
