package cli

import (
	"encoding/json"
	"io"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/openaerial/visnav/mission"
	"github.com/openaerial/visnav/sim"
	"github.com/openaerial/visnav/vision/keypoints"
	"github.com/openaerial/visnav/vision/landmark"
	"github.com/openaerial/visnav/vision/odometry"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func twoImageArgs(c *cli.Context) (string, string, error) {
	if c.Args().Len() != 2 {
		return "", "", errors.Errorf("expected 2 image paths, got %d", c.Args().Len())
	}
	return c.Args().Get(0), c.Args().Get(1), nil
}

// DetectAction is the corresponding Action for 'detect'.
func DetectAction(c *cli.Context) error {
	refPath, framePath, err := twoImageArgs(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if scales := c.Float64Slice(detectFlagScales); len(scales) > 0 {
		cfg.Landmark.ReferenceScales = scales
	}
	logger, cleanup := newLogger(c, cfg)
	defer cleanup()

	ref, err := loadImage(refPath)
	if err != nil {
		return err
	}
	frame, err := loadImage(framePath)
	if err != nil {
		return err
	}
	matcher, err := keypoints.NewMatcher(cfg.Matcher, logger.Sublogger("matcher"))
	if err != nil {
		return err
	}
	detector, err := landmark.NewDetector(ref, matcher, cfg.Landmark, logger.Sublogger("landmark"))
	if err != nil {
		return err
	}
	det := detector.Detect(frame)
	if det.Found {
		infof(c.App.Writer, "landmark found at (%.1f, %.1f) with confidence %.2f", det.Center.X, det.Center.Y, det.Confidence)
	} else {
		warningf(c.App.Writer, "landmark not found (confidence %.2f, %d matches)", det.Confidence, det.Matches)
	}
	if out := c.String(detectFlagOut); out != "" {
		st := mission.Status{Detection: det, Message: framePath}
		if err := imaging.Save(sim.Annotate(frame, st), out); err != nil {
			return errors.Wrapf(err, "cannot save %q", out)
		}
	}
	return printJSON(c.App.Writer, det)
}

// OdometryAction is the corresponding Action for 'odometry'.
func OdometryAction(c *cli.Context) error {
	prevPath, currPath, err := twoImageArgs(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, cleanup := newLogger(c, cfg)
	defer cleanup()

	prev, err := loadImage(prevPath)
	if err != nil {
		return err
	}
	curr, err := loadImage(currPath)
	if err != nil {
		return err
	}
	matcher, err := keypoints.NewMatcher(cfg.Matcher, logger.Sublogger("matcher"))
	if err != nil {
		return err
	}
	estimator, err := odometry.NewEstimator(matcher, cfg.Odometry, logger.Sublogger("odometry"))
	if err != nil {
		return err
	}
	est, err := estimator.EstimateMotion(prev, curr)
	if err != nil {
		return err
	}
	if est.Valid {
		infof(c.App.Writer, "image moved (%.2f, %.2f) px, confidence %.2f", est.DX, est.DY, est.Confidence)
	} else {
		warningf(c.App.Writer, "no motion estimate (%d matches)", est.Matches)
	}
	return printJSON(c.App.Writer, est)
}
