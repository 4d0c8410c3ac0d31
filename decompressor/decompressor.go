package decompressor

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/google/pjflate/config"
	"github.com/google/pjflate/zlib"
)

// Decompressor streams a zlib-compressed input to a decompressed output in
// configurable chunks, reporting progress along the way.
type Decompressor struct {
	cfg *config.Config
	log *logrus.Entry

	bytesIn  atomic.Int64
	bytesOut atomic.Int64
}

func New(cfg *config.Config) (*Decompressor, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "error validating config")
	}

	return &Decompressor{
		cfg: cfg,
		log: logrus.WithField("pkg", "decompressor"),
	}, nil
}

func (d *Decompressor) Run(shutdownCtx context.Context) error {
	llog := d.log.WithFields(logrus.Fields{
		"method": "Run",
	})
	llog.Debug("start")
	defer llog.Debug("exit")

	in, err := d.openInput()
	if err != nil {
		return errors.Wrap(err, "unable to open input")
	}
	defer in.Close()

	out, err := d.openOutput()
	if err != nil {
		return errors.Wrap(err, "unable to open output")
	}

	src := &countingReader{r: in, n: &d.bytesIn}
	dst := &countingWriter{w: out, n: &d.bytesOut}

	zr := zlib.NewReader(src)
	defer zr.Close()

	// Launch reporter
	repWg := &sync.WaitGroup{}
	repCtx, repCancel := context.WithCancel(context.Background())
	defer repCancel()

	if !d.cfg.CLI.Quiet {
		repWg.Add(1)

		go func() {
			d.log.Debug("reporter start")
			defer d.log.Debug("reporter exit")
			defer repWg.Done()

			d.runReporter(repCtx)
		}()
	}

	if err := d.pump(shutdownCtx, dst, zr); err != nil {
		out.Close()
		return err
	}

	if err := out.Close(); err != nil {
		return errors.Wrap(err, "unable to finish writing output")
	}

	repCancel()
	repWg.Wait()

	d.logSummary()

	return nil
}

// pump moves decompressed data in chunk-sized pieces, checking for shutdown
// between chunks.
func (d *Decompressor) pump(shutdownCtx context.Context, dst io.Writer, src io.Reader) error {
	llog := d.log.WithFields(logrus.Fields{
		"method": "pump",
	})

	buf := make([]byte, d.cfg.TOML.IO.ChunkSize)

	for {
		select {
		case <-shutdownCtx.Done():
			llog.Debug("received shutdown signal")
			return shutdownCtx.Err()
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return errors.Wrap(werr, "error writing output")
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "error decompressing input")
		}
	}
}

func (d *Decompressor) openInput() (io.ReadCloser, error) {
	if d.cfg.CLI.Input == config.StdioPath {
		return io.NopCloser(os.Stdin), nil
	}

	return os.Open(d.cfg.CLI.Input)
}

func (d *Decompressor) openOutput() (io.WriteCloser, error) {
	if d.cfg.CLI.Output == config.StdioPath {
		return nopWriteCloser{os.Stdout}, nil
	}

	return os.Create(d.cfg.CLI.Output)
}

func (d *Decompressor) logSummary() {
	in := d.bytesIn.Load()
	out := d.bytesOut.Load()

	ratio := 0.0
	if in > 0 {
		ratio = float64(out) / float64(in)
	}

	d.log.Infof("decompressed %d -> %d bytes (%.2fx)", in, out, ratio)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
