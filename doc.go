// Package carvekit implements a forensic file-carving engine: given a raw
// disk image (or any byte-addressable source) and a registered set of file
// type signatures, it locates embedded files by their header/footer byte
// patterns, validates each candidate against its own format, and writes
// out the ones worth keeping.
//
// Carving runs as a three-stage pipeline (§5): a Streaming Reader turns
// the source into overlapping Blocks, a Match Engine scans each block for
// header/footer signatures, and a Validator Framework worker pool checks
// each resulting candidate range against its format before a Writer
// stitches the validated fragments into output files.
//
// # Basic Usage
//
//	env, err := carvekit.LoadEnvConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg, err := env.Resolve(fileTypes) // your registered pattern.FileTypeSpec set
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	src, err := ioblock.Open(cfg.IOStrategy, &ioblock.LocalConfig{Path: "./image.dd"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer src.Close()
//
//	validator := validate.NewDelegatingValidator()
//	validator.Register("png", validate.NewPNGValidator())
//	validator.Register("jpeg", validate.NewJPEGValidator())
//	validator.Register("zip", validate.NewZIPValidator())
//
//	engine, err := carvekit.NewEngine(cfg, validator)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	results, err := engine.Run(context.Background(), src, 4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	writer, err := carvekit.NewLocalWriter("./carved")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, r := range results {
//	    if r.Validation.Verdict == validate.Invalid {
//	        continue
//	    }
//	    req := carvekit.WriteRequest{
//	        Filename:  carvekit.Filename(r.Candidate.HeaderOffset, r.Validation.FileExtension),
//	        Fragments: r.Validation.Fragments,
//	    }
//	    if err := writer.Write(req, src); err != nil {
//	        log.Print(err)
//	    }
//	}
//
// # Input Sources
//
// Any ioblock.Source works as the carving target. Drivers ship as
// subpackages whose init registers them with ioblock.RegisterSource:
//
//   - Local files, mmap'd regions, O_DIRECT reads, and a growing-image
//     async queue (package ioblock)
//   - SFTP (package input/sftp)
//   - Amazon S3 (package input/s3)
//
// # Configuration
//
// carvekit can be configured via environment variables with the
// CARVEKIT_ prefix, or programmatically via the [Config] struct:
//
//	cfg := &carvekit.Config{
//	    BlockSize:   4 << 20,
//	    ClusterSize: 4096,
//	    IOStrategy:  "mmap",
//	    FileTypes:   fileTypes,
//	}
//
// # Error Handling
//
// carvekit distinguishes configuration mistakes, I/O failures, and
// internal compute failures with typed errors ([ConfigError], [IOError],
// [ComputeError]) usable with errors.As. A candidate that simply doesn't
// validate is not an error at all - it's a [validate.Validation] with
// Verdict set to validate.Invalid, reported like any other result.
package carvekit
