package contracts

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/compose-network/ronin-deployer/internal/infra/filesystem"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

//go:embed abi/*.json
var embeddedABIs embed.FS

// ErrArtifactNotFound is returned when no compiled artifact exists for a contract.
var ErrArtifactNotFound = errors.New("compiled artifact not found")

type hardhatArtifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// Loader reads hardhat artifacts (<Name>.json with abi and bytecode) from a directory tree.
type Loader struct {
	dir    string
	reader filesystem.Reader
}

func NewLoader(dir string, reader filesystem.Reader) *Loader {
	return &Loader{dir: dir, reader: reader}
}

// Load returns the compiled contracts for names, keyed by name.
func (l *Loader) Load(names ...Name) (map[Name]Compiled, error) {
	paths, err := l.index()
	if err != nil {
		return nil, err
	}

	loaded := make(map[Name]Compiled, len(names))
	for _, name := range names {
		path, ok := paths[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s under %s", ErrArtifactNotFound, name, l.dir)
		}

		var artifact hardhatArtifact
		if err := l.reader.ReadJSON(path, &artifact); err != nil {
			return nil, fmt.Errorf("failed to read artifact for %s: %w", name, err)
		}

		compiled, err := parseCompiled(name, artifact.ABI, artifact.Bytecode)
		if err != nil {
			return nil, err
		}
		loaded[name] = compiled
	}

	return loaded, nil
}

// index maps contract names to artifact files, skipping hardhat debug files.
func (l *Loader) index() (map[Name]string, error) {
	paths := make(map[Name]string)

	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		base := d.Name()
		if !strings.HasSuffix(base, ".json") || strings.HasSuffix(base, ".dbg.json") {
			return nil
		}

		name := Name(strings.TrimSuffix(base, ".json"))
		if _, seen := paths[name]; !seen {
			paths[name] = path
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan artifacts directory %s: %w", l.dir, err)
	}

	return paths, nil
}

// EmbeddedABI returns the ABI shipped with the binary for name, without bytecode.
func EmbeddedABI(name Name) (Compiled, error) {
	data, err := embeddedABIs.ReadFile("abi/" + string(name) + ".json")
	if err != nil {
		return Compiled{}, fmt.Errorf("%w: no embedded ABI for %s", ErrArtifactNotFound, name)
	}

	return parseCompiled(name, data, "")
}

func parseCompiled(name Name, rawABI json.RawMessage, bytecodeHex string) (Compiled, error) {
	parsedABI, err := abi.JSON(bytes.NewReader(rawABI))
	if err != nil {
		return Compiled{}, fmt.Errorf("failed to parse ABI for %s: %w", name, err)
	}

	return Compiled{
		Name:     name,
		ABI:      parsedABI,
		RawABI:   rawABI,
		Bytecode: common.FromHex(strings.TrimSpace(bytecodeHex)),
	}, nil
}
