// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deploy

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mounts = `sysfs /sys sysfs rw,nosuid,nodev,noexec,relatime 0 0
/dev/sda1 / ext4 rw,relatime 0 0
/dev/sdb1 /media/user/NO\040NAME vfat rw,nosuid,nodev 0 0
/dev/sdc1 /media/user/RPI-RP2 vfat rw,nosuid,nodev 0 0
`

func testFs(t *testing.T) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, mountTable, []byte(mounts), 0o444))
	require.NoError(t, fsys.MkdirAll("/media/user/NO NAME", 0o755))
	require.NoError(t, fsys.MkdirAll("/media/user/RPI-RP2", 0o755))
	require.NoError(t, afero.WriteFile(fsys, "/media/user/RPI-RP2/"+InfoFile, []byte("UF2 Bootloader v3.0\n"), 0o444))
	return fsys
}

func TestMountPoints(t *testing.T) {
	m, err := MountPoints(testFs(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"/sys", "/", "/media/user/NO NAME", "/media/user/RPI-RP2"}, m)

	_, err = MountPoints(afero.NewMemMapFs())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUnescapeMount(t *testing.T) {
	assert.Equal(t, "/a b", unescapeMount(`/a\040b`))
	assert.Equal(t, "/a\tb\\", unescapeMount(`/a\011b\134`))
	assert.Equal(t, `/a\9`, unescapeMount(`/a\9`))
	assert.Equal(t, "/plain", unescapeMount("/plain"))
}

func TestUF2Auto(t *testing.T) {
	fsys := testFs(t)
	data := bytes.Repeat([]byte{0x55}, 3*chunkSize+100)
	var calls []int
	dst, err := UF2(context.Background(), fsys, "out/fw.uf2", data, Options{
		Path:     Auto,
		Progress: func(done, total int) { calls = append(calls, done); assert.Equal(t, len(data), total) },
	})
	require.NoError(t, err)
	assert.Equal(t, "/media/user/RPI-RP2/fw.uf2", dst)
	got, err := afero.ReadFile(fsys, dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, []int{chunkSize, 2 * chunkSize, 3 * chunkSize, len(data)}, calls)
}

func TestUF2ExplicitMounts(t *testing.T) {
	fsys := testFs(t)
	require.NoError(t, fsys.MkdirAll("/mnt/b", 0o755))
	require.NoError(t, afero.WriteFile(fsys, "/mnt/b/"+InfoFile, nil, 0o444))
	dst, err := UF2(context.Background(), fsys, "fw.uf2", []byte{1}, Options{
		Path:   Auto,
		Mounts: []string{"/mnt/a", "/mnt/b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/mnt/b/fw.uf2", dst)
}

func TestUF2Path(t *testing.T) {
	fsys := testFs(t)
	dst, err := UF2(context.Background(), fsys, "fw.uf2", []byte{1, 2}, Options{Path: "/media/user/NO NAME"})
	require.NoError(t, err)
	assert.Equal(t, "/media/user/NO NAME/fw.uf2", dst)

	_, err = UF2(context.Background(), fsys, "fw.uf2", []byte{1}, Options{
		Path:     "/media/user/RPI-RP2/" + InfoFile,
		Retry:    2,
		Interval: time.Millisecond,
	})
	var de *Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "UF2", de.Op)
	assert.Contains(t, err.Error(), "is not a directory")
}

func TestUF2Retry(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/mnt", 0o755))
	_, err := UF2(context.Background(), fsys, "fw.uf2", []byte{1}, Options{
		Path:     Auto,
		Mounts:   []string{"/mnt"},
		Retry:    3,
		Interval: time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrNoDevice)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")

	// The device appears while UF2 waits.
	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(20 * time.Millisecond)
		afero.WriteFile(fsys, "/mnt/"+InfoFile, nil, 0o444)
	}()
	dst, err := UF2(context.Background(), fsys, "fw.uf2", []byte{1}, Options{
		Path:     Auto,
		Mounts:   []string{"/mnt"},
		Retry:    1000,
		Interval: time.Millisecond,
	})
	<-done
	require.NoError(t, err)
	assert.Equal(t, "/mnt/fw.uf2", dst)
}

func TestUF2Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := UF2(ctx, afero.NewMemMapFs(), "fw.uf2", []byte{1}, Options{
		Path:     "/missing",
		Retry:    1 << 30,
		Interval: time.Millisecond,
	})
	assert.ErrorIs(t, err, context.Canceled)
}
