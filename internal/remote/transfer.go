package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/sftp"
)

// Fetch copies a file from the benchmark host to the local filesystem over
// SFTP, reusing an already-established connection. The sweep driver calls it
// once per run to pull the CSV artifact the generator wrote remotely.
func Fetch(ctx context.Context, conn *Connection, remotePath, localPath string) error {
	if remotePath == "" {
		return fmt.Errorf("remote path cannot be empty")
	}
	if localPath == "" {
		return fmt.Errorf("local path cannot be empty")
	}
	if conn == nil || conn.client == nil {
		return fmt.Errorf("connection is nil or closed")
	}

	sftpClient, err := sftp.NewClient(conn.client)
	if err != nil {
		return fmt.Errorf("failed to create sftp client: %w", err)
	}
	defer sftpClient.Close()

	remoteFile, err := sftpClient.Open(remotePath)
	if err != nil {
		return fmt.Errorf("failed to open remote file: %w", err)
	}
	defer remoteFile.Close()

	localDir := filepath.Dir(localPath)
	if localDir != "" && localDir != "." {
		if err := os.MkdirAll(localDir, 0755); err != nil {
			return fmt.Errorf("failed to create local directory: %w", err)
		}
	}

	localFile, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer localFile.Close()

	// Copy with context cancellation support
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(localFile, remoteFile)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			// Clean up partial file on error
			localFile.Close()
			os.Remove(localPath)
			return fmt.Errorf("failed to copy file: %w", err)
		}
		return nil
	case <-ctx.Done():
		localFile.Close()
		os.Remove(localPath)
		return fmt.Errorf("download cancelled: %w", ctx.Err())
	}
}
