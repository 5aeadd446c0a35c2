package phonon

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const keyVersion = "latticesim/strain/2"

type keyWriter struct {
	h   hash.Hash
	buf [8]byte
}

func (w *keyWriter) putInt(v int) {
	binary.LittleEndian.PutUint64(w.buf[:], uint64(v))
	w.h.Write(w.buf[:])
}

func (w *keyWriter) putFloat(v float64) {
	binary.LittleEndian.PutUint64(w.buf[:], math.Float64bits(v))
	w.h.Write(w.buf[:])
}

func (w *keyWriter) putFloats(v []float64) {
	w.putInt(len(v))
	for _, f := range v {
		w.putFloat(f)
	}
}

func (w *keyWriter) putString(s string) {
	w.putInt(len(s))
	w.h.Write([]byte(s))
}

func (w *keyWriter) putBool(b bool) {
	if b {
		w.putInt(1)
	} else {
		w.putInt(0)
	}
}

func (w *keyWriter) putMatrix(m *mat.Dense) {
	r, c := m.Dims()
	w.putInt(r)
	w.putInt(c)
	for i := 0; i < r; i++ {
		for _, f := range m.RawRowView(i) {
			w.putFloat(f)
		}
	}
}

func (w *keyWriter) putMatrices(ms []*mat.Dense) {
	w.putInt(len(ms))
	for _, m := range ms {
		w.putMatrix(m)
	}
}

// Key returns the content key of a strain-map request. It covers the
// physical parameters of every unique layer, the layer order, the delays,
// all temperature and delta-temperature maps and the only-heat flag. Dynamic
// runs also hash the integrator and the settings that shape its steps. Layer
// display names, the step budget and observers are not part of the key.
func (s *Simulation) Key(delays []float64, tempMaps, deltaTempMaps []*mat.Dense) string {
	w := &keyWriter{h: md5.New()}
	w.putString(keyVersion)

	unique := s.sample.UniqueLayers()
	w.putInt(len(unique))
	for _, l := range unique {
		w.putString(l.ID)
		w.putFloat(l.Thickness)
		w.putFloat(l.MassPerArea)
		w.putFloats(l.SpringConsts)
		w.putFloat(l.Damping)
		w.putFloats(l.LinThermExp)
		w.putFloat(l.SoundVelocity)
	}

	ids := s.sample.LayerIDs()
	w.putInt(len(ids))
	for _, id := range ids {
		w.putString(id)
	}

	w.putFloats(delays)
	w.putMatrices(tempMaps)
	w.putMatrices(deltaTempMaps)
	w.putBool(s.opts.OnlyHeat)
	if !s.opts.OnlyHeat {
		solver := s.opts.Solver
		w.putString(strings.ToUpper(s.methodName()))
		w.putFloat(solver.RelTol)
		w.putFloat(solver.AbsTol)
		w.putFloat(solver.MaxStep)
		w.putFloat(solver.FirstStep)
	}

	return hex.EncodeToString(w.h.Sum(nil))
}
