// Package ingest turns one uploaded file into canonical file records.
//
// An upload is staged to local scratch storage, classified, optionally
// unpacked, checked against size and quota limits, fingerprinted and moved
// to its storage location. Specialized processing never fails an upload on
// its own: when an archive cannot be unpacked the original bytes are stored
// as a single file and the result carries a warning.
//
// # Flow
//
//	Start -> Staged -> Classified -> {Unpacking | SingleFile} -> Guarded -> Finalized
//
// Streamed uploads are staged with [Scratch.Stage]; storage references skip
// straight to classification by name and supplied type. The classified type
// selects the unpacker:
//
//   - [TypeGzip]: decompressed into one file, ".gz" stripped from the name
//   - [TypeZip]: every regular entry becomes a file, with a directory label
//   - [TypeShapefile]: each complete shp/shx/dbf/prj set is re-zipped
//   - [TypeBagIt]: delegated to the configured [PackageHandler]
//
// Everything else is stored as a single file.
//
// # Failure Model
//
// Three kinds of failure are distinguished:
//
//   - [ExecutionError]: fatal. The call returns no result and leaves no
//     files behind. Raised for staging I/O errors, a missing scratch
//     directory, a raw upload over the size limit, package handler failures
//     and I/O errors while re-packaging a shapefile.
//   - [UnpackError]: recoverable. Partial output is discarded and the
//     original upload is stored as one file with a fresh [QuotaState].
//   - An Error [Result]: the remaining candidate was refused by the
//     [Guard], a shapefile set is incomplete, or a re-packaged shapefile
//     component was refused.
//
// # Resources
//
// Every staged file and scratch directory is released by a deferred call
// on all exit paths. Produced files live under the storage directory until
// the caller persists them or calls [Result.Release].
//
// # Concurrency
//
// A [Pipeline] is safe for concurrent use; each Ingest call is sequential
// and keeps its quota accounting local.
package ingest
