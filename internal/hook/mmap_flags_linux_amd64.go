package hook

import "golang.org/x/sys/unix"

// Stubs are 32-bit code. Keeping the arena below 2GB keeps every address a
// stub embeds representable, which matters when the package runs on a 64-bit
// host.
const mmapFlags = unix.MAP_32BIT
