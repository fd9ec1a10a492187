// Package kernel collects kernel facts from procfs.
//
// # Collected Data
//
// Facts are written under the "kernel" key:
//
//	kernel.name      /proc/sys/kernel/ostype
//	kernel.release   /proc/sys/kernel/osrelease
//	kernel.version   /proc/sys/kernel/version
//	kernel.cmdline   boot parameters from /proc/cmdline, "root" omitted
//	kernel.modules   loaded modules from /proc/modules (name -> true)
//	kernel.sysctl    /proc/sys parameters in dotted form, excluding net.*
//
// Missing files are skipped; hosts without procfs produce an empty
// kernel mapping rather than a failure.
//
// # Usage
//
//	p := kernel.New(kernel.WithRoot("/host"))
//	registry.Register(p)
package kernel
