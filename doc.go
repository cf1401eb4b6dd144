// Package mapeval scores object detections against ground truth with mean
// Average Precision over a sweep of IoU thresholds.
//
// # Quick Start
//
//	res, err := mapeval.Evaluate(ctx, detections, groundTruths)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if res.NoGroundTruth {
//	    log.Print("nothing to evaluate against")
//	}
//	fmt.Printf("mAP:%.3f\n", res.MAP)
//	for i, ap := range res.AP {
//	    fmt.Printf("\tAP at IoU level [%.2f]: %.3f\n", res.Thresholds[i], ap)
//	}
//
// # Matching
//
// Detections are ranked by descending score across all frames, ties broken by
// input position. At each IoU threshold every detection, in rank order, claims
// the unclaimed ground-truth box of its own frame with the highest IoU if that
// IoU reaches the threshold. Claims never carry over between thresholds.
//
// # Interpolation
//
// AP is the area under the precision envelope sampled at every recall step
// (InterpolationAllPoints). The VOC2007 11-point and COCO 101-point schemes
// are available through WithInterpolation but are never the default.
//
// # Thread Safety
//
// Evaluator is immutable after New and safe for concurrent use. A single call
// evaluates thresholds in parallel, bounded by WithWorkers.
package mapeval
