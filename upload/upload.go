// Package upload publishes the market data CSV through the irys command
// line tool and extracts the resulting transaction id.
package upload

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/polyrabbit/market-collector/config"
	"github.com/sirupsen/logrus"
)

// ErrDisabled is returned by Upload when uploading is turned off.
var ErrDisabled = errors.New("upload disabled")

// Receipt describes a successful upload. TxID is empty when the tool exited
// cleanly but printed nothing that looks like a transaction id.
type Receipt struct {
	File        string
	TxID        string
	AccessURL   string
	ExplorerURL string
}

// Known reports whether the transaction id could be extracted.
func (r *Receipt) Known() bool {
	return r != nil && r.TxID != ""
}

type Uploader struct {
	Enabled  bool
	Command  string
	Host     string
	Token    string
	Wallet   string
	AppName  string
	Gateway  string
	Explorer string
	Chains   []string
	Timeout  time.Duration
	Now      func() time.Time
}

func New(cfg *config.Config) *Uploader {
	return &Uploader{
		Enabled:  cfg.Upload.Enabled,
		Command:  cfg.Upload.Command,
		Host:     cfg.Upload.Host,
		Token:    cfg.Upload.Token,
		Wallet:   cfg.Upload.Wallet,
		AppName:  cfg.Upload.AppName,
		Gateway:  strings.TrimRight(cfg.Upload.Gateway, "/"),
		Explorer: strings.TrimRight(cfg.Upload.Explorer, "/"),
		Chains:   cfg.Chains,
		Timeout:  time.Duration(cfg.Upload.Timeout) * time.Second,
		Now:      time.Now,
	}
}

// Tags returns the key/value pairs attached to the upload.
func (u *Uploader) Tags(now time.Time) [][2]string {
	return [][2]string{
		{"appName", u.AppName},
		{"date", now.Format("2006-01-02")},
		{"time", now.Format("15:04:05")},
		{"chains", strings.Join(u.Chains, ",")},
	}
}

func (u *Uploader) args(path string, now time.Time) []string {
	args := []string{"upload", path,
		"--token", u.Token,
		"--host", u.Host,
		"--wallet", u.Wallet,
	}
	for _, tag := range u.Tags(now) {
		args = append(args, "--tags", tag[0], tag[1])
	}
	return args
}

// Upload runs the upload tool on path. A non-zero exit status or a failure
// to run the tool is returned as an error and yields no receipt.
func (u *Uploader) Upload(ctx context.Context, path string) (*Receipt, error) {
	if !u.Enabled {
		return nil, ErrDisabled
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "artifact not found")
	}
	if u.Wallet == "" {
		return nil, errors.New("wallet key is not configured, set WALLET_PRIVATE_KEY")
	}

	now := u.Now()
	logEntry := logrus.WithField("file", path)
	logEntry.WithField("size", fi.Size()).Info("Uploading to Irys")
	for _, tag := range u.Tags(now) {
		logEntry.Debugf("Tag %s: %s", tag[0], tag[1])
	}

	if u.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.Timeout)
		defer cancel()
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, u.Command, u.args(path, now)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "%s upload failed: %s", u.Command, strings.TrimSpace(stderr.String()))
	}

	output := strings.TrimSpace(stdout.String())
	for i, line := range strings.Split(output, "\n") {
		logEntry.Debugf("Output line %d: %q", i, line)
	}

	receipt := &Receipt{File: path}
	txID := ExtractTxID(output, u.Gateway)
	if txID == "" {
		logEntry.Warn("Upload completed but transaction ID not found in output")
		logEntry.Infof("Full stdout: %s", output)
		logEntry.Infof("Full stderr: %s", strings.TrimSpace(stderr.String()))
		return receipt, nil
	}

	receipt.TxID = txID
	receipt.AccessURL = u.Gateway + "/" + txID
	receipt.ExplorerURL = u.Explorer + "/" + txID
	logEntry.WithField("tx", txID).Info("Upload successful")
	logEntry.Infof("Access link: %s", receipt.AccessURL)
	logEntry.Infof("Explorer link: %s", receipt.ExplorerURL)
	if !LooksLikeTxID(txID) {
		logEntry.Warnf("Transaction ID format may be invalid: %s", txID)
	}
	return receipt, nil
}
