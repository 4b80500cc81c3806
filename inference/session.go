// Package inference - Inference sessions.
package inference

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment loads the onnxruntime shared library once per process.
func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if _, err := os.Stat(libPath); err != nil {
			envErr = errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = errors.Wrap(err, "error initializing ORT environment")
		}
	})
	return envErr
}

// Session represents a model session from the onnxruntime with its
// pre-allocated input and output tensors.
type Session struct {
	session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]
	// OutputShape is the shape of Output.
	OutputShape []int
	mu          sync.Mutex
}

// NewSession creates a new onnxruntime session for cfg.
//
// Arguments:
//   - cfg: The detector configuration.
//   - logger: Receives lifecycle messages.
//
// Returns:
//   - *Session: The session. Close releases its tensors.
//   - error: An error if the runtime or the model cannot be loaded.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	if err := initEnvironment(GetSharedLibPath(cfg.SharedLibPath)); err != nil {
		return nil, err
	}

	in := cfg.InputSize()
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(in.Height), int64(in.Width)))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}

	dims := make([]int64, len(cfg.OutputShape))
	for i, d := range cfg.OutputShape {
		dims[i] = int64(d)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(dims...))
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := sessionOptions(cfg)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	logger.Info("✅ onnxruntime session created",
		zap.String("model", cfg.ModelPath),
		zap.String("provider", string(cfg.Provider)),
		zap.Stringer("input", in),
		zap.Ints("output", cfg.OutputShape),
	)

	return &Session{
		session:     session,
		Input:       inputTensor,
		Output:      outputTensor,
		OutputShape: append([]int(nil), cfg.OutputShape...),
	}, nil
}

// sessionOptions translates the thread and provider settings.
func sessionOptions(cfg Config) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
		options.Destroy()
		return nil, errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
		options.Destroy()
		return nil, errors.Wrap(err, "error setting inter-op threads")
	}

	switch cfg.Provider {
	case ProviderCoreML:
		err = options.AppendExecutionProviderCoreML(0)
	case ProviderOpenVINO:
		err = options.AppendExecutionProviderOpenVINO(map[string]string{
			"device_type": "CPU",
			"precision":   "FP32",
		})
	}
	if err != nil {
		options.Destroy()
		return nil, errors.Wrapf(err, "error enabling %s", cfg.Provider)
	}

	return options, nil
}

// Run executes the model on the current contents of Input.
func (s *Session) Run() error {
	if s.session == nil {
		return errors.New("session closed")
	}
	return s.session.Run()
}

// Lock serializes use of the shared input and output tensors.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases Lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Close releases the resources associated with the Session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Input != nil {
		s.Input.Destroy()
		s.Input = nil
	}
	if s.Output != nil {
		s.Output.Destroy()
		s.Output = nil
	}
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
}
