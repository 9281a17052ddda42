package vfs

import (
	"syscall"

	"github.com/tomhrr/fsmu/internal/ferrors"
)

// errnoFor maps a ferrors.Error onto the errno the kernel expects,
// the translation point between the core components' typed errors
// and go-fuse's raw syscall.Errno returns.
func errnoFor(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	switch {
	case ferrors.Is(err, ferrors.KindNotFound):
		return syscall.ENOENT
	case ferrors.Is(err, ferrors.KindPermissionDenied):
		return syscall.EPERM
	case ferrors.Is(err, ferrors.KindInvalidArgument):
		return syscall.EINVAL
	case ferrors.Is(err, ferrors.KindSearchFailed):
		return syscall.EIO
	case ferrors.Is(err, ferrors.KindCorrupt):
		return syscall.EIO
	case ferrors.Is(err, ferrors.KindIOError):
		return syscall.EIO
	default:
		return syscall.EIO
	}
}
