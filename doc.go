/*
Package zipkit reads, creates, and modifies ZIP archives in place.

Unlike archive/zip, zipkit keeps a full model of the central directory in
memory so that an archive opened from a file, a buffer, or any other seekable
Source can be mutated (entries added, replaced, renamed, deleted, or have
their comments/attributes changed) and then committed back out: a new archive
is staged through a temporary file and atomically swapped in, byte-exact with
the ZIP/ZIP64 format down to extra field ordering.

Every byte that enters or leaves an archive flows through a Source, a small
stackable command-dispatch interface (see source.go). Concrete sources exist
for named files, open file handles, in-memory buffers, buffer fragments, and
byte-range windows over another source; Source implementations can be
layered to add CRC validation, compression, and encryption without the core
archive logic knowing the difference.

Compression and encryption algorithms are not hardcoded: the Codec and
EncryptionCodec registries (codec.go, encrypt.go) let the core invoke
whichever concrete algorithm is registered for a method ID. A default
registry pre-populated with Store, Deflate, Bzip2, LZMA and Zstd (and
traditional PKWARE / WinZip-AES encryption) is installed on every new
Archive; callers add or replace codecs by registering them on it.

This package does not support multi-disk archives, streaming
(non-seekable) central directory writes, or modifying an entry that is
currently open for reading.
*/
package zipkit
