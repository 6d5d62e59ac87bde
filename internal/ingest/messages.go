package ingest

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// MessageFunc renders a user-visible message from a key and ordered
// arguments. Plug in a translation layer by replacing Options.Messages.
type MessageFunc func(key string, args ...any) string

// Message keys produced by the pipeline.
const (
	MsgUnzipFailed         = "unzip.failed"
	MsgUnzipEncoding       = "unzip.failed.encoding"
	MsgUnzipCount          = "unzip.failed.count"
	MsgUnzipSize           = "unzip.failed.size"
	MsgUnzipQuota          = "unzip.failed.quota"
	MsgGunzipFailed        = "gunzip.failed"
	MsgGunzipSize          = "gunzip.failed.size"
	MsgGunzipQuota         = "gunzip.failed.quota"
	MsgShapefileSize       = "shapefile.failed.size"
	MsgShapefileQuota      = "shapefile.failed.quota"
	MsgFileExceedsLimit    = "error.file_exceeds_limit"
	MsgQuotaExceeded       = "error.quota_exceeded"
	MsgShapefileIncomplete = "error.shapefile_incomplete"
	MsgShapefileInvalid    = "error.shapefile_invalid"
)

var defaultMessages = map[string]string{
	MsgUnzipFailed:         "Failed to unpack the zip archive; it was saved as is.",
	MsgUnzipEncoding:       "Failed to unpack the zip archive (unknown character set used in a file name?); it was saved as is.",
	MsgUnzipCount:          "The zip archive contains too many files (over the limit of %v); it was saved as is. Upload an archive with fewer files to have them stored individually.",
	MsgUnzipSize:           "The zip archive contains a file larger than the %v limit; it was saved as is.",
	MsgUnzipQuota:          "Unpacking the zip archive would exceed the remaining storage quota of %v; it was saved as is.",
	MsgGunzipFailed:        "Failed to decompress the file; it was saved as is.",
	MsgGunzipSize:          "The decompressed file would be larger than the %v limit; the compressed file was saved as is.",
	MsgGunzipQuota:         "The decompressed file would exceed the remaining storage quota of %v; the compressed file was saved as is.",
	MsgShapefileSize:       "A re-packaged shapefile component is larger than the %v limit.",
	MsgShapefileQuota:      "Re-packaging the shapefile would exceed the remaining storage quota of %v.",
	MsgFileExceedsLimit:    "The file is larger than the %v size limit.",
	MsgQuotaExceeded:       "The file exceeds the remaining storage quota: %v is larger than %v.",
	MsgShapefileIncomplete: "Shapefile set %q is incomplete; missing %v.",
	MsgShapefileInvalid:    "The shapefile archive could not be read.",
}

// DefaultMessages renders messages from the built-in English catalog.
// Unknown keys render as the key itself followed by the arguments.
func DefaultMessages(key string, args ...any) string {
	tmpl, ok := defaultMessages[key]
	if !ok {
		if len(args) == 0 {
			return key
		}
		return key + " " + fmt.Sprint(args...)
	}
	return fmt.Sprintf(tmpl, args...)
}

// Bytes formats a byte count for messages, e.g. "1.5 MiB".
type Bytes int64

func (b Bytes) String() string {
	if b < 0 {
		return fmt.Sprintf("%d B", int64(b))
	}
	return humanize.IBytes(uint64(b))
}

// limitArg renders a Limit as a message argument.
func limitArg(l Limit) any {
	if n, ok := l.Bytes(); ok {
		return Bytes(n)
	}
	return "unlimited"
}
