package rhl

import (
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

//binDescription returns the label of one bin box for rendering.
func binDescription[T Floats](bin int, pair GradientPair[T]) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("bin ", bin))
	sb.WriteString(fmt.Sprintln("grad: ", float64(pair.Grad)))
	sb.WriteString(fmt.Sprint("hess: ", float64(pair.Hess)))
	return sb.String()
}

//DrawGraph renders a built histogram as a star of bin boxes around a
//title node, for eyeballing small debug builds.
func DrawGraph[T Floats](hist *Histogram[T], title string) (*graphviz.Graphviz, *cgraph.Graph) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	HandleError(err)

	root, err := graph.CreateNode(title)
	HandleError(err)

	for bin := 0; bin < hist.NumBins(); bin++ {
		currentNode, err := graph.CreateNode(fmt.Sprintf("bin_%d", bin))
		HandleError(err)
		currentNode.Set("label", binDescription(bin, hist.At(bin)))
		currentNode.Set("shape", "box")
		graph.CreateEdge("", root, currentNode)
	}

	return graphViz, graph
}

//RenderHistogram writes one figure file for a built histogram.
func RenderHistogram[T Floats](hist *Histogram[T], title, figureType, fileName string) {
	graphvizType := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]

	graphViz, graph := DrawGraph(hist, title)
	HandleError(graphViz.RenderFilename(graph, graphvizType, fileName))
}
