// Package scanner discovers the files of one or more workspace roots that are
// worth indexing.
//
// Directories named in ExcludedDirs are pruned wherever they appear. Files are
// dropped when they end in .log, exceed MaxFileSize, contain a NUL byte in
// their first 2 KiB, or cannot be stat'ed or read. Scan never fails: problems
// with individual entries only shrink the result.
//
// Paths handed to the vector store are made relative with Relative, which
// picks the first root containing the file.
package scanner
