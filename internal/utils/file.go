package utils

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
)

// hashChunkSize balances memory use against syscall overhead for large
// database files.
const hashChunkSize = 8 * 1024 * 1024

// FileHash calculates the MD5 hash of a file, streaming it in fixed-size
// chunks so the whole file is never held in memory.
func FileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(hash, file, buf); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}
