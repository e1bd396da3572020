package services

import (
	"errors"
	"fmt"
	"math"

	"github.com/codelieche/analytics/pkg/core"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// errDegenerateFit 拟合残差为0，无法给出有意义的置信区间
var errDegenerateFit = errors.New("残差方差为0，置信区间退化")

// DefaultForecastModels 预测模型回退链：阻尼趋势指数平滑 -> ARIMA(1,1,0) -> 朴素预测
func DefaultForecastModels() []core.ForecastModel {
	return []core.ForecastModel{
		&DampedHoltModel{},
		&ARIMA110Model{},
		&NaiveModel{},
	}
}

// zScore 置信区间宽度对应的正态分位数（0.95 -> 1.96）
func zScore(intervalWidth float64) float64 {
	if intervalWidth <= 0 || intervalWidth >= 1 {
		intervalWidth = 0.95
	}
	return distuv.UnitNormal.Quantile((1 + intervalWidth) / 2)
}

func allFinite(values ...[]float64) bool {
	for _, series := range values {
		for _, v := range series {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// isDegenerate 标准差相对序列水平可以忽略
func isDegenerate(sigma float64, values []float64) bool {
	scale := 1.0
	for _, v := range values {
		scale = math.Max(scale, math.Abs(v))
	}
	return math.IsNaN(sigma) || sigma <= 1e-9*scale
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// DampedHoltModel 加法阻尼趋势指数平滑
//
//	l_t = l_{t-1} + φ·b_{t-1} + α·e_t
//	b_t = φ·b_{t-1} + β·e_t
//
// α、β、φ用Nelder-Mead最小化一步预测误差平方和得到
type DampedHoltModel struct{}

func (m *DampedHoltModel) Name() string { return "damped_holt" }

// holtParams 无约束参数映射到 α∈(0,1)、β∈(0,α)、φ∈(0.8,0.98)
func holtParams(x []float64) (alpha, beta, phi float64) {
	alpha = sigmoid(x[0])
	beta = alpha * sigmoid(x[1])
	phi = 0.8 + 0.18*sigmoid(x[2])
	return
}

// holtRun 按参数跑一遍平滑，返回误差平方和以及最终的水平和趋势
func holtRun(values []float64, alpha, beta, phi float64) (sse, level, trend float64) {
	level = values[0]
	trend = values[1] - values[0]
	for t := 1; t < len(values); t++ {
		e := values[t] - (level + phi*trend)
		sse += e * e
		level = level + phi*trend + alpha*e
		trend = phi*trend + beta*e
	}
	return sse, level, trend
}

func (m *DampedHoltModel) Fit(values []float64, periods int, z float64) (forecast, lower, upper []float64, err error) {
	n := len(values)
	if n < 3 {
		return nil, nil, nil, errors.New("阻尼趋势模型至少需要3个点")
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			alpha, beta, phi := holtParams(x)
			sse, _, _ := holtRun(values, alpha, beta, phi)
			return sse
		},
	}
	result, err := optimize.Minimize(problem, []float64{0, -1, 0}, &optimize.Settings{MajorIterations: 500}, &optimize.NelderMead{})
	if result == nil {
		return nil, nil, nil, fmt.Errorf("参数拟合失败: %w", err)
	}

	alpha, beta, phi := holtParams(result.X)
	sse, level, trend := holtRun(values, alpha, beta, phi)
	sigma := math.Sqrt(sse / float64(n-1))
	if isDegenerate(sigma, values) {
		return nil, nil, nil, errDegenerateFit
	}

	forecast = make([]float64, periods)
	lower = make([]float64, periods)
	upper = make([]float64, periods)

	dampedSum := 0.0 // φ + φ² + ... + φ^h
	phiPower := 1.0
	variance := 1.0
	for h := 1; h <= periods; h++ {
		if h > 1 {
			// 第j步的系数 c_j = α + β·(φ + ... + φ^j)
			c := alpha + beta*dampedSum
			variance += c * c
		}
		phiPower *= phi
		dampedSum += phiPower

		forecast[h-1] = level + dampedSum*trend
		spread := z * sigma * math.Sqrt(variance)
		lower[h-1] = forecast[h-1] - spread
		upper[h-1] = forecast[h-1] + spread
	}

	if !allFinite(forecast, lower, upper) {
		return nil, nil, nil, errors.New("阻尼趋势模型结果无效")
	}
	return forecast, lower, upper, nil
}

// ARIMA110Model 一阶差分上的AR(1)：d_t = φ·d_{t-1} + e_t，φ用最小二乘估计
type ARIMA110Model struct{}

func (m *ARIMA110Model) Name() string { return "arima_110" }

func (m *ARIMA110Model) Fit(values []float64, periods int, z float64) (forecast, lower, upper []float64, err error) {
	n := len(values)
	if n < 3 {
		return nil, nil, nil, errors.New("ARIMA(1,1,0)至少需要3个点")
	}

	diffs := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diffs[i-1] = values[i] - values[i-1]
	}

	var numerator, denominator float64
	for t := 1; t < len(diffs); t++ {
		numerator += diffs[t] * diffs[t-1]
		denominator += diffs[t-1] * diffs[t-1]
	}
	if denominator == 0 {
		return nil, nil, nil, errors.New("差分序列为常数，无法估计AR系数")
	}
	phi := numerator / denominator
	if math.Abs(phi) >= 1 {
		return nil, nil, nil, fmt.Errorf("AR系数%.3f不平稳", phi)
	}

	residuals := make([]float64, 0, len(diffs)-1)
	for t := 1; t < len(diffs); t++ {
		residuals = append(residuals, diffs[t]-phi*diffs[t-1])
	}
	var sse float64
	for _, e := range residuals {
		sse += e * e
	}
	sigma := math.Sqrt(sse / float64(len(residuals)))
	if isDegenerate(sigma, values) {
		return nil, nil, nil, errDegenerateFit
	}

	forecast = make([]float64, periods)
	lower = make([]float64, periods)
	upper = make([]float64, periods)

	last := values[n-1]
	diff := diffs[len(diffs)-1]
	// ψ_j = 1 + φ + ... + φ^j，预测方差 σ²·Σψ_j²
	psi, phiPower, variance := 0.0, 1.0, 0.0
	for h := 1; h <= periods; h++ {
		psi += phiPower
		phiPower *= phi
		variance += psi * psi

		diff *= phi
		last += diff
		forecast[h-1] = last
		spread := z * sigma * math.Sqrt(variance)
		lower[h-1] = last - spread
		upper[h-1] = last + spread
	}

	if !allFinite(forecast, lower, upper) {
		return nil, nil, nil, errors.New("ARIMA(1,1,0)结果无效")
	}
	return forecast, lower, upper, nil
}

// NaiveModel 重复最后一个值，区间为 ± z·标准差
// 标准差不可用（或为0）时取最后一个值的10%
type NaiveModel struct{}

func (m *NaiveModel) Name() string { return "naive" }

func (m *NaiveModel) Fit(values []float64, periods int, z float64) (forecast, lower, upper []float64, err error) {
	if len(values) == 0 {
		return nil, nil, nil, errors.New("没有历史数据")
	}
	last := values[len(values)-1]

	std := math.NaN()
	if len(values) > 1 {
		std = stat.StdDev(values, nil)
	}
	if math.IsNaN(std) || std == 0 {
		std = math.Abs(last) * 0.1
	}

	forecast = make([]float64, periods)
	lower = make([]float64, periods)
	upper = make([]float64, periods)
	for i := range forecast {
		forecast[i] = last
		lower[i] = last - z*std
		upper[i] = last + z*std
	}
	return forecast, lower, upper, nil
}
