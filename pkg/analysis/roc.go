package analysis

import "fmt"

// ROCFromCurves pairs a signal and a background efficiency-vs-cut curve,
// point by point, into a ROC curve: point i is (background efficiency i,
// signal efficiency i). Both curves must come from the same cut-value axis
// and therefore have the same point count; a mismatch is a structural
// error and no curve is produced.
func ROCFromCurves(sig, bkg *Graph) (*Graph, error) {
	if sig.Len() != bkg.Len() {
		return nil, fmt.Errorf("signal and background curves must have the same number of points: signal=%d background=%d",
			sig.Len(), bkg.Len())
	}

	n := sig.Len()
	roc := &Graph{X: make([]float64, n), Y: make([]float64, n)}
	copy(roc.X, bkg.Y)
	copy(roc.Y, sig.Y)
	return roc, nil
}
