package command

import (
	"encoding/json"
	"fmt"
	"os"
)

// FileStore persists custom commands and aliases as a single JSON document.
type FileStore struct {
	Path string
}

type commandData struct {
	CustomCommands map[string]string `json:"custom_commands"`
	CommandAliases map[string]string `json:"command_aliases"`
}

// Load reads the stored commands. A missing file yields empty maps.
func (s *FileStore) Load() (customs, aliases map[string]string, err error) {
	customs = make(map[string]string)
	aliases = make(map[string]string)
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return customs, aliases, nil
		}
		return nil, nil, fmt.Errorf("read command data: %w", err)
	}
	var doc commandData
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode command data: %w", err)
	}
	if doc.CustomCommands != nil {
		customs = doc.CustomCommands
	}
	if doc.CommandAliases != nil {
		aliases = doc.CommandAliases
	}
	return customs, aliases, nil
}

// Save writes the commands back to disk.
func (s *FileStore) Save(customs, aliases map[string]string) error {
	data, err := json.Marshal(commandData{CustomCommands: customs, CommandAliases: aliases})
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0o644)
}
