package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/filex"
)

// readFile is a test seam for os.ReadFile.
var readFile = os.ReadFile

func (a *App) Upload(ctx context.Context, args []string) error {
	if err := usage(args, 1, "upload <path>"); err != nil {
		return err
	}
	content, err := readFile(args[0])
	if err != nil {
		return report(err)
	}
	doc, err := a.svc.Documents.Upload(ctx, a.principal, filepath.Base(args[0]), content)
	if err != nil {
		return report(err)
	}
	printlnFn(fmt.Sprintf("Uploaded %s as index %d (%d bytes)", doc.Metadata.Name, doc.Index, doc.Metadata.Size))
	return nil
}

func (a *App) Download(ctx context.Context, args []string) error {
	if err := usage(args, 2, "download <owner> <index>"); err != nil {
		return err
	}
	idx, err := parseIndex(args[1])
	if err != nil {
		return err
	}

	content, doc, err := a.svc.Documents.Download(ctx, args[0], idx, a.principal)
	if err != nil {
		return report(err)
	}

	dir, err := filex.EnsureSubdDir(a.downloads)
	if err != nil {
		return report(err)
	}
	path, err := filex.SaveInto(dir, doc.Metadata.Name, content)
	if err != nil {
		return report(err)
	}
	if doc.IsEncrypted {
		printlnFn("Note: content is encrypted at rest")
	}
	printlnFn("Saved to", path)
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if err := usage(args, 2, "delete <owner> <index>"); err != nil {
		return err
	}
	idx, err := parseIndex(args[1])
	if err != nil {
		return err
	}
	if err := a.svc.Documents.Delete(ctx, args[0], idx, a.principal); err != nil {
		return report(err)
	}
	printlnFn("Deleted")
	return nil
}

func (a *App) Toggle(ctx context.Context, args []string) error {
	if err := usage(args, 1, "toggle <index>"); err != nil {
		return err
	}
	idx, err := parseIndex(args[0])
	if err != nil {
		return err
	}

	key, err := GetPassword("Encryption key", a.out)
	if err != nil {
		return report(err)
	}
	defer common.WipeByteArray(key)

	doc, err := a.svc.Documents.ToggleEncryption(ctx, a.principal, idx, string(key))
	if err != nil {
		return report(err)
	}
	if doc.IsEncrypted {
		printlnFn("Document", idx, "is now encrypted")
	} else {
		printlnFn("Document", idx, "is now decrypted")
	}
	return nil
}

func (a *App) List(ctx context.Context, _ []string) error {
	docs, err := a.svc.Documents.List(ctx, a.principal)
	if err != nil {
		return report(err)
	}
	if len(docs) == 0 {
		printlnFn("No documents")
		return nil
	}
	for _, d := range docs {
		printlnFn(fmt.Sprintf("%4d  %-30s %8d  %-24s encrypted=%t shares=%d",
			d.Document.Index, d.Document.Metadata.Name, d.Document.Metadata.Size,
			d.Document.DeletionState, d.Document.IsEncrypted, len(d.Shares)))
		for _, s := range d.Shares {
			printlnFn(fmt.Sprintf("        -> %s until %s", s.InviteeAddress, s.ValidUntil.Format(time.RFC3339)))
		}
	}
	return nil
}

func (a *App) Orphans(ctx context.Context, _ []string) error {
	names, err := a.svc.Documents.FindOrphans(ctx, a.principal)
	if err != nil {
		return report(err)
	}
	if len(names) == 0 {
		printlnFn("No orphaned objects")
		return nil
	}
	for _, n := range names {
		printlnFn(n)
	}
	return nil
}
