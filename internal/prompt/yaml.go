package prompt

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// instructionFile 은 기능별 프롬프트 파일 형식이다.
type instructionFile struct {
	System string `yaml:"system"`
}

// readInstructions 는 dir 의 *.yml 파일을 읽어 파일 이름별 시스템 지시문을 반환한다.
func readInstructions(fsys fs.FS, dir string) (map[string]string, error) {
	paths, err := fs.Glob(fsys, path.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("glob prompt dir: %w", err)
	}

	instructions := make(map[string]string, len(paths))
	for _, filePath := range paths {
		data, err := fs.ReadFile(fsys, filePath)
		if err != nil {
			return nil, fmt.Errorf("read prompt file: %w", err)
		}
		var file instructionFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filePath, err)
		}
		name := strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))
		instructions[name] = strings.TrimSpace(file.System)
	}
	return instructions, nil
}
