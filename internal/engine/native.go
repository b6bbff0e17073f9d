//go:build whispercpp

package engine

/*
#cgo CFLAGS: -I${SRCDIR}/../../third_party/whisper.cpp -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo CXXFLAGS: -std=c++17 -I${SRCDIR}/../../third_party/whisper.cpp -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo LDFLAGS: -L${SRCDIR}/../../third_party/whisper.cpp/build -L${SRCDIR}/../../third_party/whisper.cpp/build/src -Wl,-rpath,${SRCDIR}/../../third_party/whisper.cpp/build/src -lwhisper -lstdc++ -lm

#include "stdlib.h"
#include "include/whisper.h"
#include "ggml.h"

bool whisperGoAbort(void * user_data);
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/cgo"
	"strings"
	"sync"
	"unsafe"
)

// NativeAvailable reports whether the native whisper backend is compiled in.
func NativeAvailable() bool { return true }

// NativeLoader loads ggml models into an in-process whisper.cpp context.
type NativeLoader struct {
	resolver ModelResolver
	opts     Options
	log      *slog.Logger
}

// NewNativeLoader returns a loader backed by the linked whisper.cpp library.
func NewNativeLoader(resolver ModelResolver, opts Options, logger *slog.Logger) (Loader, error) {
	if resolver == nil {
		return nil, errors.New("engine: model resolver is required")
	}
	if strings.TrimSpace(opts.ModelFile) == "" {
		return nil, errors.New("engine: model file is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NativeLoader{
		resolver: resolver,
		opts:     opts,
		log:      logger.With("component", "engine.whispercpp"),
	}, nil
}

// Load implements Loader.
func (l *NativeLoader) Load(ctx context.Context, repo string, offline bool) (Model, error) {
	path, err := l.resolver.Resolve(ctx, repo, l.opts.ModelFile, offline)
	if err != nil {
		return nil, err
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	cParams := C.whisper_context_default_params()
	cParams.use_gpu = C.bool(false)

	wctx := C.whisper_init_from_file_with_params(cPath, cParams)
	if wctx == nil {
		return nil, fmt.Errorf("whisper: failed to initialise context for %s", path)
	}
	l.log.Info("native model loaded", "repo", repo, "path", path, "offline", offline)
	return &NativeModel{ctx: wctx, opts: l.opts}, nil
}

// NativeModel runs whisper_full on a fresh state per request.
type NativeModel struct {
	mu   sync.Mutex
	ctx  *C.struct_whisper_context
	opts Options
}

// Features implements Model.
func (m *NativeModel) Features(samples []float32) (Features, error) {
	return sampleFeatures(samples)
}

// Generate implements Model and returns a single Transcript.
func (m *NativeModel) Generate(ctx context.Context, features Features) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(features.Samples) == 0 {
		return nil, errors.New("whisper: no samples")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return nil, errors.New("whisper: model closed")
	}

	state := C.whisper_init_state(m.ctx)
	if state == nil {
		return nil, errors.New("whisper: failed to initialise state")
	}
	defer C.whisper_free_state(state)

	params := C.whisper_full_default_params(C.WHISPER_SAMPLING_GREEDY)
	params.print_progress = C.bool(false)
	params.print_realtime = C.bool(false)
	params.print_timestamps = C.bool(false)
	params.translate = C.bool(false)
	params.no_context = C.bool(true)
	if m.opts.Threads > 0 {
		params.n_threads = C.int(m.opts.Threads)
	}

	lang := languageHint(m.opts.Language)
	cLang := C.CString(lang)
	defer C.free(unsafe.Pointer(cLang))
	params.language = cLang
	if lang == "auto" {
		params.detect_language = C.bool(true)
	}

	handle := cgo.NewHandle(ctx)
	defer handle.Delete()
	params.abort_callback = (C.ggml_abort_callback)(C.whisperGoAbort)
	params.abort_callback_user_data = unsafe.Pointer(&handle)

	cSamples := (*C.float)(unsafe.Pointer(&features.Samples[0]))
	if ret := C.whisper_full_with_state(m.ctx, state, params, cSamples, C.int(len(features.Samples))); ret != 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("whisper: inference failed with code %d", int(ret))
	}

	return collectTranscript(state), nil
}

// Close implements Model.
func (m *NativeModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		C.whisper_free(m.ctx)
		m.ctx = nil
	}
	return nil
}

//export whisperGoAbort
func whisperGoAbort(userData unsafe.Pointer) C.bool {
	if userData == nil {
		return C.bool(false)
	}
	handle := *(*cgo.Handle)(userData)
	ctx, ok := handle.Value().(context.Context)
	if !ok || ctx == nil {
		return C.bool(false)
	}
	return C.bool(ctx.Err() != nil)
}

func collectTranscript(state *C.struct_whisper_state) Transcript {
	count := int(C.whisper_full_n_segments_from_state(state))
	var (
		builder      strings.Builder
		sumProb      float64
		tokenSamples int
	)
	for i := 0; i < count; i++ {
		text := strings.TrimSpace(C.GoString(C.whisper_full_get_segment_text_from_state(state, C.int(i))))
		if text != "" {
			if builder.Len() > 0 {
				builder.WriteByte(' ')
			}
			builder.WriteString(text)
		}
		tokenCount := int(C.whisper_full_n_tokens_from_state(state, C.int(i)))
		for j := 0; j < tokenCount; j++ {
			tokenData := C.whisper_full_get_token_data_from_state(state, C.int(i), C.int(j))
			if tokenData.p > 0 {
				sumProb += float64(tokenData.p)
				tokenSamples++
			}
		}
	}

	out := Transcript{Body: strings.TrimSpace(builder.String())}
	if strings.EqualFold(out.Body, "[BLANK_AUDIO]") {
		out.Body = ""
	}
	if tokenSamples > 0 {
		out.Score = sumProb / float64(tokenSamples)
	}
	if id := C.whisper_full_lang_id_from_state(state); id >= 0 {
		out.Lang = C.GoString(C.whisper_lang_str(id))
	}
	return out
}
