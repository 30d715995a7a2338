package inference

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	InputName  = "input"
	OutputName = "value"
)

// ErrShapeMismatch is returned when the model's declared input does not fit
// the backend's tensor shape.
var ErrShapeMismatch = errors.New("inference: model input shape mismatch")

type OnnxConfig struct {
	ModelPath   string
	LibraryPath string
	// StateShape is the per-state shape without the batch dimension.
	StateShape []int64
	UseCUDA    bool
}

// OnnxModel runs a value network exported with one input named "input" of
// shape [batch, StateShape...] and one output named "value" of shape [batch, 1].
type OnnxModel struct {
	session    *ort.DynamicAdvancedSession
	stateShape []int64
	inputSize  int
}

var ortInitOnce sync.Once
var ortInitErr error

// NewOnnxModel loads the model and checks it against the state shape. All
// failures here are fatal for the caller; nothing is deferred to Run.
func NewOnnxModel(cfg OnnxConfig) (*OnnxModel, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("inference: model file: %w", err)
	}
	if len(cfg.StateShape) == 0 {
		return nil, fmt.Errorf("%w: empty state shape", ErrShapeMismatch)
	}

	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("inference: read model info: %w", err)
	}
	if err := checkShapes(inputs, outputs, cfg.StateShape); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	// One batcher per session already gives us parallelism.
	options.SetIntraOpNumThreads(1)
	options.SetInterOpNumThreads(1)

	if cfg.UseCUDA {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err == nil {
			defer cudaOptions.Destroy()
			if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
				log.Warn().Err(err).Msg("cuda provider unavailable, using cpu")
			} else {
				log.Info().Msg("cuda provider enabled")
			}
		} else {
			log.Warn().Err(err).Msg("failed to create cuda options, using cpu")
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, []string{InputName}, []string{OutputName}, options)
	if err != nil {
		return nil, fmt.Errorf("inference: create session: %w", err)
	}

	size := int64(1)
	for _, d := range cfg.StateShape {
		size *= d
	}
	return &OnnxModel{
		session:    session,
		stateShape: append([]int64(nil), cfg.StateShape...),
		inputSize:  int(size),
	}, nil
}

func checkShapes(inputs, outputs []ort.InputOutputInfo, stateShape []int64) error {
	var in *ort.InputOutputInfo
	for i := range inputs {
		if inputs[i].Name == InputName {
			in = &inputs[i]
		}
	}
	if in == nil {
		return fmt.Errorf("%w: no input named %q", ErrShapeMismatch, InputName)
	}
	hasOutput := false
	for _, o := range outputs {
		if o.Name == OutputName {
			hasOutput = true
		}
	}
	if !hasOutput {
		return fmt.Errorf("%w: no output named %q", ErrShapeMismatch, OutputName)
	}

	dims := in.Dimensions
	if len(dims) != len(stateShape)+1 {
		return fmt.Errorf("%w: model input %v, state shape %v", ErrShapeMismatch, dims, stateShape)
	}
	for i, want := range stateShape {
		got := dims[i+1]
		// Negative dims are symbolic and accept anything.
		if got >= 0 && got != want {
			return fmt.Errorf("%w: model input %v, state shape %v", ErrShapeMismatch, dims, stateShape)
		}
	}
	return nil
}

func initEnvironment(libraryPath string) error {
	if libraryPath == "" {
		libraryPath = os.Getenv("ORT_SHARED_LIBRARY_PATH")
	}
	if libraryPath == "" {
		cwd, _ := os.Getwd()
		libraryPath = findLibrary(cwd)
	}
	if libraryPath != "" {
		log.Debug().Str("path", libraryPath).Msg("onnxruntime library")
		ort.SetSharedLibraryPath(libraryPath)
	}

	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return fmt.Errorf("inference: init onnxruntime: %w", ortInitErr)
	}
	return nil
}

// libraryPatterns are tried in order under the working directory. The
// virtualenv entry is where pip installs the onnxruntime wheel.
var libraryPatterns = []string{
	"libonnxruntime.so",
	"libonnxruntime.so.*",
	"libonnxruntime.dylib",
	"onnxruntime.dll",
	filepath.Join(".venv", "lib", "python*", "site-packages", "onnxruntime", "capi", "libonnxruntime.so*"),
}

// findLibrary returns the full path of the first onnxruntime shared library
// found under root, or "" when there is none. The path is handed to the
// loader directly because the dynamic linker reads LD_LIBRARY_PATH only at
// process start.
func findLibrary(root string) string {
	for _, pat := range libraryPatterns {
		matches, _ := filepath.Glob(filepath.Join(root, pat))
		for _, m := range matches {
			if st, err := os.Stat(m); err == nil && !st.IsDir() {
				return m
			}
		}
	}
	return ""
}
