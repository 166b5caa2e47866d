// Package source opens input files from the local disk or from HDFS.
package source

import (
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/colinmarc/hdfs"
	"github.com/pkg/errors"
)

const hdfsScheme = "hdfs"

// Open returns a reader for a local path or an hdfs://namenode:port/path URL.
func Open(path string) (io.ReadCloser, error) {
	if IsHDFS(path) {
		return openHDFS(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return f, nil
}

func IsHDFS(path string) bool {
	return strings.HasPrefix(strings.ToLower(path), hdfsScheme+"://")
}

// SplitHDFS returns the namenode address and the file path of an hdfs URL.
func SplitHDFS(raw string) (addr string, path string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", errors.Wrapf(err, "parse %s", raw)
	}
	if !strings.EqualFold(u.Scheme, hdfsScheme) || u.Host == "" || u.Path == "" {
		return "", "", errors.Errorf("%s is not an hdfs://namenode:port/path url", raw)
	}
	return u.Host, u.Path, nil
}

type hdfsFile struct {
	*hdfs.FileReader
	client *hdfs.Client
}

func (f *hdfsFile) Close() error {
	err := f.FileReader.Close()
	if cerr := f.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func openHDFS(raw string) (io.ReadCloser, error) {
	addr, path, err := SplitHDFS(raw)
	if err != nil {
		return nil, err
	}
	client, err := hdfs.New(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to namenode %s", addr)
	}
	file, err := client.Open(path)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "open %s on %s", path, addr)
	}
	return &hdfsFile{FileReader: file, client: client}, nil
}
