package testsuite

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SuiteFile is the on-disk form of a test suite: suite metadata plus inline
// test case definitions. YAML and JSON files are both accepted, chosen by
// file extension.
type SuiteFile struct {
	ID          string     `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	TestCases   []TestCase `json:"test_cases" yaml:"test_cases"`
}

// LoadSuiteFile reads a suite definition, validates every case, and returns
// the suite together with its cases. Case ids are generated when the file
// omits them; the suite references cases in file order.
func LoadSuiteFile(path string) (TestSuite, []TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TestSuite{}, nil, fmt.Errorf("failed to read suite file %s: %w", path, err)
	}

	var file SuiteFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return TestSuite{}, nil, fmt.Errorf("failed to parse suite file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return TestSuite{}, nil, fmt.Errorf("failed to parse suite file %s: %w", path, err)
		}
	default:
		return TestSuite{}, nil, fmt.Errorf("unsupported suite file extension %q (expected .yaml, .yml, or .json)", filepath.Ext(path))
	}

	if file.Name == "" {
		file.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if len(file.TestCases) == 0 {
		return TestSuite{}, nil, fmt.Errorf("suite file %s defines no test cases", path)
	}

	cases := make([]TestCase, 0, len(file.TestCases))
	ids := make([]string, 0, len(file.TestCases))
	for i, raw := range file.TestCases {
		tc, err := NewTestCase(raw)
		if err != nil {
			return TestSuite{}, nil, fmt.Errorf("suite file %s, test case %d: %w", path, i+1, err)
		}
		cases = append(cases, tc)
		ids = append(ids, tc.ID)
	}

	suite, err := NewTestSuite(TestSuite{
		ID:          file.ID,
		Name:        file.Name,
		Description: file.Description,
		Tags:        file.Tags,
		TestCases:   ids,
	})
	if err != nil {
		return TestSuite{}, nil, fmt.Errorf("suite file %s: %w", path, err)
	}

	return suite, cases, nil
}

// ListSuiteFiles returns suite definition files found directly under dir,
// sorted by name. A missing directory is not an error.
func ListSuiteFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read suite directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// WriteCaseFile writes a single test case definition, YAML or JSON by
// extension, creating parent directories as needed.
func WriteCaseFile(path string, tc TestCase) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(tc, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(tc)
	default:
		return fmt.Errorf("unsupported test case file extension %q (expected .yaml, .yml, or .json)", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to encode test case: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write test case file %s: %w", path, err)
	}
	return nil
}
