package veridia

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	bolt "go.etcd.io/bbolt"
)

const lexiconFileName = "lexicon.txt"

// lexiconBucket is the single bbolt bucket holding surface → word_id when
// the disk-resident backend is in use.
var lexiconBucket = []byte("lexicon")

// LexiconBackend is the storage contract §4.C describes as identical
// across a plain in-memory map+skip-list and a disk-resident ordered
// key-value store. Lexicon delegates to whichever backend the caller
// selects; callers never see the difference.
type LexiconBackend interface {
	Get(surface string) (uint32, bool)
	Put(surface string, wordID uint32)
	PrefixScan(prefix string, limit int) []string
	All() []string
	Close() error
}

// memoryLexiconBackend is the default backend: a hash map for O(1) point
// lookup plus the skip list in skiplist.go for the ordered surface view.
type memoryLexiconBackend struct {
	forward map[string]uint32
	ordered *orderedLexicon
}

func newMemoryLexiconBackend() *memoryLexiconBackend {
	return &memoryLexiconBackend{
		forward: make(map[string]uint32),
		ordered: newOrderedLexicon(),
	}
}

func (b *memoryLexiconBackend) Get(surface string) (uint32, bool) {
	id, ok := b.forward[surface]
	return id, ok
}

func (b *memoryLexiconBackend) Put(surface string, wordID uint32) {
	if _, exists := b.forward[surface]; exists {
		return
	}
	b.forward[surface] = wordID
	b.ordered.insert(surface, wordID)
}

func (b *memoryLexiconBackend) PrefixScan(prefix string, limit int) []string {
	return b.ordered.prefixScan(prefix, limit)
}

func (b *memoryLexiconBackend) All() []string {
	return b.ordered.all()
}

func (b *memoryLexiconBackend) Close() error { return nil }

// boltLexiconBackend is the "tight memory" alternative §4.C names: an
// embedded B-tree-style key-value engine. bbolt keeps keys in
// byte-lexicographic order natively, so prefix scans are a plain cursor
// Seek+Next walk with no separate ordered index to maintain.
type boltLexiconBackend struct {
	db *bolt.DB
}

func openBoltLexiconBackend(path string) (*boltLexiconBackend, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("opening lexicon store: %w: %v", ErrIoFailure, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(lexiconBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing lexicon bucket: %w: %v", ErrIoFailure, err)
	}
	return &boltLexiconBackend{db: db}, nil
}

func (b *boltLexiconBackend) Get(surface string) (uint32, bool) {
	var id uint32
	var found bool
	b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(lexiconBucket).Get([]byte(surface))
		if v != nil {
			id = decodeWordID(v)
			found = true
		}
		return nil
	})
	return id, found
}

func (b *boltLexiconBackend) Put(surface string, wordID uint32) {
	b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(lexiconBucket)
		if bucket.Get([]byte(surface)) != nil {
			return nil
		}
		return bucket.Put([]byte(surface), encodeWordID(wordID))
	})
}

func (b *boltLexiconBackend) PrefixScan(prefix string, limit int) []string {
	out := make([]string, 0, limit)
	b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(lexiconBucket).Cursor()
		for k, _ := c.Seek([]byte(prefix)); k != nil && len(out) < limit; k, _ = c.Next() {
			if !strings.HasPrefix(string(k), prefix) {
				break
			}
			out = append(out, string(k))
		}
		return nil
	})
	return out
}

func (b *boltLexiconBackend) All() []string {
	out := make([]string, 0)
	b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(lexiconBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			out = append(out, string(k))
		}
		return nil
	})
	return out
}

func (b *boltLexiconBackend) Close() error {
	return b.db.Close()
}

func encodeWordID(id uint32) []byte {
	return []byte{byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)}
}

func decodeWordID(v []byte) uint32 {
	return uint32(v[0]) | uint32(v[1])<<8 | uint32(v[2])<<16 | uint32(v[3])<<24
}

// Lexicon is the bijective surface ↔ word_id map of §4.C, backed by
// whichever LexiconBackend the engine was opened with.
type Lexicon struct {
	dataDir    string
	backend    LexiconBackend
	nextWordID uint32
}

// openLexicon loads lexicon.txt (if present) into a fresh in-memory
// backend. This is the default path; there is no cached serialized form,
// so every open parses the text file.
func openLexicon(dataDir string) (*Lexicon, error) {
	backend := newMemoryLexiconBackend()
	lex := &Lexicon{dataDir: dataDir, backend: backend}
	if err := lex.loadText(); err != nil {
		return nil, err
	}
	return lex, nil
}

// openLexiconForConfig selects the in-memory or bbolt-backed disk-resident
// lexicon backend per cfg.UseDiskLexicon (§4.C: "plain in-memory map ...
// or a disk-resident ordered key-value store"). Engine and its reload path
// call this rather than choosing a backend directly, so the selection
// stays in one place.
func openLexiconForConfig(cfg Config) (*Lexicon, error) {
	if cfg.UseDiskLexicon {
		return openDiskLexicon(cfg.DataDir)
	}
	return openLexicon(cfg.DataDir)
}

// openDiskLexicon loads lexicon.txt into a bbolt-backed disk-resident
// store, for deployments where the whole lexicon does not comfortably fit
// in memory (§4.C point (c)).
func openDiskLexicon(dataDir string) (*Lexicon, error) {
	backend, err := openBoltLexiconBackend(filepath.Join(dataDir, "lexicon.bolt"))
	if err != nil {
		return nil, err
	}
	lex := &Lexicon{dataDir: dataDir, backend: backend}
	if err := lex.loadText(); err != nil {
		backend.Close()
		return nil, err
	}
	return lex, nil
}

func (lex *Lexicon) loadText() error {
	f, err := os.Open(filepath.Join(lex.dataDir, lexiconFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening lexicon: %w: %v", ErrIoFailure, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return fmt.Errorf("lexicon line %d: %w: expected surface\\tword_id", lineNo, ErrCorruptStructure)
		}
		id, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return fmt.Errorf("lexicon line %d: %w: %v", lineNo, ErrCorruptStructure, err)
		}
		lex.backend.Put(parts[0], uint32(id))
		if uint32(id)+1 > lex.nextWordID {
			lex.nextWordID = uint32(id) + 1
		}
	}
	return scanner.Err()
}

// GetID returns the word_id assigned to surface, or ErrNotInLexicon.
func (lex *Lexicon) GetID(surface string) (uint32, error) {
	id, ok := lex.backend.Get(surface)
	if !ok {
		return 0, fmt.Errorf("surface %q: %w", surface, ErrNotInLexicon)
	}
	return id, nil
}

// Intern assigns a fresh word_id to surface if unseen, else returns the
// existing id. Idempotent: repeated calls with the same surface return the
// same id and never rewrite an existing assignment (§4.C, §8).
func (lex *Lexicon) Intern(surface string) uint32 {
	if id, ok := lex.backend.Get(surface); ok {
		return id
	}
	id := lex.nextWordID
	lex.nextWordID++
	lex.backend.Put(surface, id)
	return id
}

// NextWordID returns the next id that Intern would assign.
func (lex *Lexicon) NextWordID() uint32 {
	return lex.nextWordID
}

// SetNextWordID forces the next-assigned id, used when reconciling
// persistent state (§4.K) against a lexicon that was loaded from an older
// snapshot.
func (lex *Lexicon) SetNextWordID(id uint32) {
	if id > lex.nextWordID {
		lex.nextWordID = id
	}
}

// PrefixScan returns up to limit surfaces ≥ prefix that start with prefix,
// in lexicographic order (§4.C, §4.H).
func (lex *Lexicon) PrefixScan(prefix string, limit int) []string {
	return lex.backend.PrefixScan(prefix, limit)
}

// All returns every surface in ascending order.
func (lex *Lexicon) All() []string {
	return lex.backend.All()
}

// AppendLexiconText appends newly interned surfaces to the on-disk lexicon.txt in
// sorted order, per §4.I step 3.
func AppendLexiconText(dataDir string, newSurfaces map[string]uint32) error {
	if len(newSurfaces) == 0 {
		return nil
	}
	surfaces := make([]string, 0, len(newSurfaces))
	for s := range newSurfaces {
		surfaces = append(surfaces, s)
	}
	sort.Strings(surfaces)

	f, err := appendFile(filepath.Join(dataDir, lexiconFileName))
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, s := range surfaces {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", s, newSurfaces[s]); err != nil {
			return fmt.Errorf("appending lexicon entry: %w: %v", ErrIoFailure, err)
		}
	}
	return w.Flush()
}

func (lex *Lexicon) Close() error {
	return lex.backend.Close()
}
