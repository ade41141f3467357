package hook

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/pboyd/malloc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mappingPerms returns the permission column of the /proc/self/maps line
// that contains addr.
func mappingPerms(t *testing.T, addr uintptr) string {
	t.Helper()

	f, err := os.Open("/proc/self/maps")
	require.NoError(t, err)
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) < 2 {
			continue
		}
		lo, hi, ok := strings.Cut(fields[0], "-")
		if !ok {
			continue
		}
		start, err1 := strconv.ParseUint(lo, 16, 64)
		end, err2 := strconv.ParseUint(hi, 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if uint64(addr) >= start && uint64(addr) < end {
			return fields[1]
		}
	}
	require.NoError(t, s.Err())
	t.Fatalf("%#x is not mapped", addr)
	return ""
}

func TestArenaPlace_Executable(t *testing.T) {
	buf, err := stubArena.place(16, func(uintptr) ([]byte, error) {
		return []byte{0xc3}, nil
	})
	require.NoError(t, err)
	defer stubArena.release(buf)

	addr := addrOf(buf)
	assert.Equal(t, "r-x", mappingPerms(t, addr)[:3])
	if runtime.GOARCH == "amd64" {
		assert.Less(t, uint64(addr), uint64(1)<<32)
	}
}

func TestStubBackend(t *testing.T) {
	_, ok := stubBackend().(malloc.ProtectedArenaBackend)
	assert.True(t, ok)
}
